package config

import (
	"flag"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага
	// Интервал опроса статуса batch-заданий, в секундах. Бэкоффа нет намеренно:
	// опрос batch-API дёшев, а задание и так живёт минуты.
	PollIntervalSeconds int `env:"BATCH_POLL_INTERVAL_SECONDS"`

	OpenAI OpenAIBatchConfig
	Gemini GeminiBatchConfig
	TTS    TTSCheckConfig
}

// OpenAIBatchConfig параметры пайплайна OpenAI Batch API.
type OpenAIBatchConfig struct {
	APIKey string `env:"OPENAI_API_KEY"`     // Ключ берём из .env/ENV. Если пуст — фатальная ошибка до сетевых вызовов
	Model  string `env:"OPENAI_BATCH_MODEL"` // Модель batch-задания, по умолчанию gpt-4o-mini
}

// GeminiBatchConfig параметры пайплайна Gemini Batch API.
type GeminiBatchConfig struct {
	APIKey string `env:"GOOGLE_AI_API_KEY"`  // Ключ Generative Language API
	Model  string `env:"GEMINI_BATCH_MODEL"` // Модель batch-задания, по умолчанию gemini-2.0-flash
}

// TTSCheckConfig конфигурация проверки TTS-провайдеров (cmd/tts-check).
type TTSCheckConfig struct {
	Fallback string `env:"TTS_FALLBACK"`   // Резервный сервис: deepgram|google
	Play     bool   `env:"TTS_PLAY"`       // Проигрывать синтезированное аудио
	Text     string `env:"TTS_CHECK_TEXT"` // Фраза для синтеза
	Cartesia CartesiaTTSConfig
	Deepgram DeepgramTTSConfig
	Google   GoogleTTSConfig
}

// CartesiaTTSConfig конфигурация основного TTS (Cartesia, websocket-стриминг).
type CartesiaTTSConfig struct {
	APIKey   string   `env:"CARTESIA_API_KEY"`
	Model    string   `env:"CARTESIA_TTS_MODEL"`
	Voice    string   `env:"CARTESIA_TTS_VOICE"`    // Идентификатор голоса
	Language string   `env:"CARTESIA_TTS_LANGUAGE"` // Код языка, напр. de
	Speed    float64  `env:"CARTESIA_TTS_SPEED"`    // Скорость речи, -1.0..1.0
	Emotions []string `env:"CARTESIA_TTS_EMOTIONS" envSeparator:";"`
}

// DeepgramTTSConfig конфигурация резервного TTS (Deepgram, REST).
type DeepgramTTSConfig struct {
	APIKey string `env:"DEEPGRAM_API_KEY"`
	Model  string `env:"DEEPGRAM_TTS_MODEL"` // Напр. aura-2-arcas-en
}

// GoogleTTSConfig конфигурация резервного TTS через Google Cloud Text-to-Speech.
type GoogleTTSConfig struct {
	// Путь к файлу ключа сервисного аккаунта. Фактически читается из ENV GOOGLE_APPLICATION_CREDENTIALS.
	CredentialsPath string  `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Language        string  `env:"GOOGLE_TTS_LANGUAGE"`
	Voice           string  `env:"GOOGLE_TTS_VOICE"`
	SpeakingRate    float64 `env:"GOOGLE_TTS_SPEAKING_RATE"`
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:           false,
		PollIntervalSeconds: 10,
		OpenAI: OpenAIBatchConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiBatchConfig{
			Model: "gemini-2.0-flash",
		},
		TTS: TTSCheckConfig{
			Fallback: "deepgram",
			Play:     false,
			Text:     "Es freut mich, Sie kennenzulernen, Ich hoffe, Sie haben einen schönen Tag",
			Cartesia: CartesiaTTSConfig{
				Model:    "sonic-3-2025-10-27",
				Voice:    "b9de4a89-2257-424b-94c2-db18ba68c81a", // viktoria-german
				Language: "de",
				Speed:    0.2,
				Emotions: []string{"positivity:highest", "curiosity:highest"},
			},
			Deepgram: DeepgramTTSConfig{
				Model: "aura-2-arcas-en",
			},
			Google: GoogleTTSConfig{
				CredentialsPath: "service-account.json",
				Language:        "de-DE",
				Voice:           "de-DE-Standard-A",
				SpeakingRate:    1.0,
			},
		},
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	flag.IntVar(&cfg.PollIntervalSeconds, "poll-interval-seconds", cfg.PollIntervalSeconds, "интервал опроса статуса batch-задания в секундах")
	flag.StringVar(&cfg.OpenAI.Model, "openai-model", cfg.OpenAI.Model, "модель OpenAI для batch-задания")
	flag.StringVar(&cfg.Gemini.Model, "gemini-model", cfg.Gemini.Model, "модель Gemini для batch-задания")
	// TTS-check
	flag.StringVar(&cfg.TTS.Fallback, "tts-fallback", cfg.TTS.Fallback, "резервный TTS-сервис: deepgram|google")
	flag.BoolVar(&cfg.TTS.Play, "tts-play", cfg.TTS.Play, "проигрывать синтезированное аудио (mp3/wav)")
	flag.StringVar(&cfg.TTS.Text, "tts-text", cfg.TTS.Text, "фраза для синтеза")
	flag.StringVar(&cfg.TTS.Cartesia.Model, "cartesia-model", cfg.TTS.Cartesia.Model, "модель Cartesia")
	flag.StringVar(&cfg.TTS.Cartesia.Voice, "cartesia-voice", cfg.TTS.Cartesia.Voice, "идентификатор голоса Cartesia")
	flag.StringVar(&cfg.TTS.Cartesia.Language, "cartesia-language", cfg.TTS.Cartesia.Language, "код языка Cartesia, напр. de")
	flag.Float64Var(&cfg.TTS.Cartesia.Speed, "cartesia-speed", cfg.TTS.Cartesia.Speed, "скорость речи Cartesia, -1.0..1.0")
	// Принимаем список эмоций одной строкой, разделённой ';'
	var emotionsFlag string
	emotionsFlag = strings.Join(cfg.TTS.Cartesia.Emotions, ";")
	flag.StringVar(&emotionsFlag, "cartesia-emotions", emotionsFlag, "эмоции Cartesia, разделённые ';', напр. positivity:highest")
	flag.StringVar(&cfg.TTS.Deepgram.Model, "deepgram-model", cfg.TTS.Deepgram.Model, "модель Deepgram, напр. aura-2-arcas-en")
	flag.StringVar(&cfg.TTS.Google.Language, "google-tts-language", cfg.TTS.Google.Language, "язык Google TTS, напр. de-DE")
	flag.StringVar(&cfg.TTS.Google.Voice, "google-tts-voice", cfg.TTS.Google.Voice, "имя голоса Google TTS")
	flag.Float64Var(&cfg.TTS.Google.SpeakingRate, "google-tts-speaking-rate", cfg.TTS.Google.SpeakingRate, "скорость речи Google TTS")
	flag.Parse()

	cfg.TTS.Cartesia.Emotions = parseListFlag(emotionsFlag, nil)

	return cfg
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string, def []string) []string {
	// Пустая строка → дефолт
	if v == "" {
		return def
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
