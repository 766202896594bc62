package google

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"

	"BatchRace/internal/config"
	"BatchRace/internal/tts"
)

// Client реализует синтез речи через Google Cloud Text-to-Speech.
type Client struct {
	cfg    config.GoogleTTSConfig
	logger *zap.SugaredLogger
}

func New(cfg config.GoogleTTSConfig, logger *zap.SugaredLogger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Name() string { return "Google" }

// Ready проверяет наличие ключа сервисного аккаунта. Если ENV пуст,
// но в конфиге указан существующий путь — устанавливаем ENV.
func (c *Client) Ready() error {
	cred := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	if cred == "" {
		if cp := strings.TrimSpace(c.cfg.CredentialsPath); cp != "" {
			_ = os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cp)
			cred = cp
		}
	}
	if cred == "" {
		return errors.New("google tts: GOOGLE_APPLICATION_CREDENTIALS is not set")
	}
	if _, err := os.Stat(cred); err != nil {
		return errors.New("google tts: credentials file not found: " + cred)
	}
	return nil
}

// Synthesize выполняет запрос к Google TTS и возвращает mp3 целиком.
func (c *Client) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	ttsClient, err := gctts.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	defer ttsClient.Close()

	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: text}},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: c.cfg.Language,
			Name:         c.cfg.Voice,
		},
		// Только MP3
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
			SpeakingRate:  c.cfg.SpeakingRate,
		},
	}

	started := time.Now()
	resp, err := ttsClient.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Infow("Google TTS synthesize completed", "took", time.Since(started).String())

	return &tts.Result{Audio: resp.GetAudioContent(), Chunks: 1, Format: "mp3"}, nil
}
