package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"BatchRace/internal/batch"
	geminibatch "BatchRace/internal/batch/gemini"
	openaibatch "BatchRace/internal/batch/openai"
	"BatchRace/internal/config"
	"BatchRace/internal/pricing"
	"BatchRace/internal/race"
)

// Гонка batch-API: OpenAI против Gemini на фиксированном наборе звонков.
// Оба пайплайна выполняются одновременно, после завершения печатается сравнение.
func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	// Ключи проверяем до любых сетевых вызовов.
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		sugar.Errorw("OPENAI_API_KEY is not set")
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		sugar.Errorw("GOOGLE_AI_API_KEY is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	poll := time.Duration(cfg.PollIntervalSeconds) * time.Second

	oc := openaibatch.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, poll, sugar)
	gc := geminibatch.New(cfg.Gemini.APIKey, cfg.Gemini.Model, poll, sugar)

	sugar.Infow("Starting batch race",
		"calls", len(batch.TestCalls),
		"openaiModel", cfg.OpenAI.Model,
		"geminiModel", cfg.Gemini.Model,
		"pollInterval", poll.String(),
	)
	fmt.Printf("Batch pricing per 1M tokens: %s $%.4f | %s $%.4f\n",
		openaibatch.Name, pricing.OpenAIBatchPerMTok,
		geminibatch.Name, pricing.GeminiBatchPerMTok,
	)

	d := race.New(sugar)
	summary := d.Run(ctx,
		race.Pipeline{
			Name:        openaibatch.Name,
			CostPerMTok: pricing.OpenAIBatchPerMTok,
			Run: func(ctx context.Context) ([]batch.Result, error) {
				return oc.Run(ctx, batch.TestCalls)
			},
		},
		race.Pipeline{
			Name:        geminibatch.Name,
			CostPerMTok: pricing.GeminiBatchPerMTok,
			Run: func(ctx context.Context) ([]batch.Result, error) {
				return gc.Run(ctx, batch.TestCalls)
			},
		},
	)
	summary.Print(os.Stdout)

	if !summary.First.Success() && !summary.Second.Success() {
		os.Exit(1)
	}
}
