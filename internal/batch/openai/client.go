package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"BatchRace/internal/batch"
)

// Name имя провайдера в выводе сравнения.
const Name = "OpenAI"

// Client гоняет фиксированный набор звонков через OpenAI Batch API:
// JSONL-файл загружается через Files API, создаётся batch-задание,
// статус опрашивается с фиксированным интервалом, результат разбирается построчно.
type Client struct {
	client       oai.Client
	model        string
	pollInterval time.Duration
	logger       *zap.SugaredLogger
}

func New(apiKey, model string, pollInterval time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		client:       oai.NewClient(option.WithAPIKey(apiKey)),
		model:        model,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// batchLine одна строка входного JSONL-файла. Формат зафиксирован Batch API:
// custom_id возвращается в результатах и связывает ответ с исходным звонком.
type batchLine struct {
	CustomID string   `json:"custom_id"`
	Method   string   `json:"method"`
	URL      string   `json:"url"`
	Body     chatBody `json:"body"`
}

type chatBody struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// outputLine одна строка выходного JSONL-файла завершённого задания.
type outputLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		Body struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
}

// buildLines собирает запросы batch-задания, по одному на звонок.
func buildLines(model string, calls []batch.Call) []batchLine {
	lines := make([]batchLine, 0, len(calls))
	for _, call := range calls {
		lines = append(lines, batchLine{
			CustomID: call.ID,
			Method:   "POST",
			URL:      "/v1/chat/completions",
			Body: chatBody{
				Model: model,
				Messages: []chatMessage{
					{Role: "user", Content: batch.ExtractionPrompt(call.Transcript)},
				},
				Temperature:    0.1,
				MaxTokens:      500,
				ResponseFormat: responseFormat{Type: "json_object"},
			},
		})
	}
	return lines
}

// encodeJSONL сериализует запросы в JSONL-формат Files API.
func encodeJSONL(lines []batchLine) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return nil, fmt.Errorf("encode batch line %s: %w", l.CustomID, err)
		}
	}
	return buf.Bytes(), nil
}

// Run выполняет полный пайплайн и возвращает разобранные результаты.
func (c *Client) Run(ctx context.Context, calls []batch.Call) ([]batch.Result, error) {
	lines := buildLines(c.model, calls)
	payload, err := encodeJSONL(lines)
	if err != nil {
		return nil, err
	}

	c.logger.Infow("Uploading batch input", "provider", Name, "requests", len(lines))
	file, err := c.client.Files.New(ctx, oai.FileNewParams{
		File:    oai.File(bytes.NewReader(payload), "batch-input.jsonl", "application/jsonl"),
		Purpose: oai.FilePurposeBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("upload batch file: %w", err)
	}

	job, err := c.client.Batches.New(ctx, oai.BatchNewParams{
		InputFileID:      file.ID,
		Endpoint:         oai.BatchNewParamsEndpointV1ChatCompletions,
		CompletionWindow: oai.BatchNewParamsCompletionWindow24h,
	})
	if err != nil {
		return nil, fmt.Errorf("create batch job: %w", err)
	}
	c.logger.Infow("Batch job created", "provider", Name, "id", job.ID, "status", job.Status)

	done, err := c.waitForCompletion(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	c.logger.Infow("Retrieving results", "provider", Name, "outputFile", done.OutputFileID)
	resp, err := c.client.Files.Content(ctx, done.OutputFileID)
	if err != nil {
		return nil, fmt.Errorf("download batch output: %w", err)
	}
	defer resp.Body.Close()

	return parseOutput(resp.Body, c.logger)
}

// waitForCompletion опрашивает задание с фиксированным интервалом до терминального статуса.
// Терминальное задание повторно не опрашивается.
func (c *Client) waitForCompletion(ctx context.Context, id string) (*oai.Batch, error) {
	started := time.Now()
	for polls := 1; ; polls++ {
		job, err := c.client.Batches.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("retrieve batch: %w", err)
		}
		switch job.Status {
		case oai.BatchStatusCompleted:
			return job, nil
		case oai.BatchStatusFailed, oai.BatchStatusExpired, oai.BatchStatusCancelled:
			return nil, fmt.Errorf("batch finished with status %q", job.Status)
		}

		if polls%3 == 0 {
			c.logger.Infow("Still processing",
				"provider", Name,
				"status", job.Status,
				"elapsed", time.Since(started).Round(time.Second).String(),
			)
		}

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-time.After(c.pollInterval):
		}
	}
}

// parseOutput разбирает JSONL-результат. Кривая строка пропускается с предупреждением
// и не валит весь batch.
func parseOutput(r io.Reader, logger *zap.SugaredLogger) ([]batch.Result, error) {
	var results []batch.Result

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var ol outputLine
		if err := json.Unmarshal([]byte(line), &ol); err != nil {
			logger.Warnw("Skipping malformed result line", "provider", Name, "error", err)
			continue
		}
		if len(ol.Response.Body.Choices) == 0 {
			logger.Warnw("Skipping result without choices", "provider", Name, "callID", ol.CustomID)
			continue
		}

		var ex batch.Extraction
		content := strings.TrimSpace(ol.Response.Body.Choices[0].Message.Content)
		if err := json.Unmarshal([]byte(content), &ex); err != nil {
			logger.Warnw("Skipping result with malformed content", "provider", Name, "callID", ol.CustomID, "error", err)
			continue
		}

		results = append(results, batch.Result{CallID: ol.CustomID, Data: ex})
	}
	if err := sc.Err(); err != nil {
		return results, fmt.Errorf("read batch output: %w", err)
	}

	return results, nil
}
