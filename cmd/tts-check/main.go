package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"BatchRace/internal/config"
	"BatchRace/internal/tts"
	"BatchRace/internal/tts/cartesia"
	"BatchRace/internal/tts/deepgram"
	"BatchRace/internal/tts/google"
	"BatchRace/internal/tts/player"
)

// Проверка TTS-провайдеров: основной Cartesia и резервный (Deepgram или Google).
// Для каждого — проверка конфигурации и пробный синтез; в конце сводка PASS/FAIL.
func main() {
	cfg := config.NewConfig()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	ctx := context.Background()

	primary := cartesia.New(cfg.TTS.Cartesia, sugar)

	// Резервный сервис по конфигурации
	var fallback tts.Synthesizer
	switch strings.ToLower(strings.TrimSpace(cfg.TTS.Fallback)) {
	case "google":
		fallback = google.New(cfg.TTS.Google, sugar)
	default:
		fallback = deepgram.New(cfg.TTS.Deepgram, sugar)
	}

	sugar.Infow("Starting TTS check",
		"primary", primary.Name(),
		"fallback", fallback.Name(),
		"text", cfg.TTS.Text,
	)

	var p player.Player
	if cfg.TTS.Play {
		p = player.New()
	}

	type step struct {
		name string
		ok   bool
	}
	var steps []step

	for _, s := range []tts.Synthesizer{primary, fallback} {
		initOK := true
		if err := s.Ready(); err != nil {
			sugar.Errorw("Provider not ready", "provider", s.Name(), "error", err)
			initOK = false
		}
		steps = append(steps, step{name: s.Name() + " init", ok: initOK})

		if !initOK {
			sugar.Warnw("Skipping synthesis, initialization failed", "provider", s.Name())
			steps = append(steps, step{name: s.Name() + " synthesis", ok: false})
			continue
		}

		steps = append(steps, step{name: s.Name() + " synthesis", ok: synthesize(ctx, s, cfg.TTS.Text, p, sugar)})
	}

	// Итоговая сводка
	line := strings.Repeat("=", 60)
	fmt.Println()
	fmt.Println(line)
	fmt.Println("TTS CHECK SUMMARY")
	fmt.Println(line)
	allOK := true
	for _, st := range steps {
		status := "PASS"
		if !st.ok {
			status = "FAIL"
			allOK = false
		}
		fmt.Printf("  %-28s %s\n", st.name+":", status)
	}
	fmt.Println(line)

	if !allOK {
		os.Exit(1)
	}
}

// synthesize выполняет пробный синтез и (опционально) проигрывает результат.
func synthesize(ctx context.Context, s tts.Synthesizer, text string, p player.Player, sugar *zap.SugaredLogger) bool {
	started := time.Now()
	res, err := s.Synthesize(ctx, text)
	if err != nil {
		sugar.Errorw("Synthesis failed", "provider", s.Name(), "error", err)
		return false
	}
	sugar.Infow("Synthesis completed",
		"provider", s.Name(),
		"chunks", res.Chunks,
		"bytes", len(res.Audio),
		"format", res.Format,
		"took", time.Since(started).Round(time.Millisecond).String(),
	)

	if p != nil {
		switch res.Format {
		case "mp3", "wav":
			if err := p.Play(res.Format, bytes.NewReader(res.Audio)); err != nil {
				sugar.Warnw("Playback failed", "provider", s.Name(), "error", err)
			}
		default:
			// Сырой PCM напрямую не проигрываем.
			sugar.Infow("Playback skipped", "provider", s.Name(), "format", res.Format)
		}
	}
	return true
}
