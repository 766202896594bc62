package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"BatchRace/internal/config"
	"BatchRace/internal/tts"
)

const defaultEndpoint = "https://api.deepgram.com/v1/speak"

// Client реализует синтез речи через Deepgram Aura (REST, аудио одним куском).
type Client struct {
	http     *http.Client
	cfg      config.DeepgramTTSConfig
	endpoint string // перекрывается в тестах
	logger   *zap.SugaredLogger
}

func New(cfg config.DeepgramTTSConfig, logger *zap.SugaredLogger) *Client {
	return &Client{http: http.DefaultClient, cfg: cfg, endpoint: defaultEndpoint, logger: logger}
}

func (c *Client) Name() string { return "Deepgram" }

// Ready проверяет конфигурацию до сетевых вызовов.
func (c *Client) Ready() error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.New("deepgram tts: empty API key (set DEEPGRAM_API_KEY in .env/ENV)")
	}
	return nil
}

type speakRequest struct {
	Text string `json:"text"`
}

// Synthesize выполняет запрос к Deepgram и возвращает mp3 целиком.
func (c *Client) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("deepgram tts: empty input text")
	}

	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?model=%s&encoding=mp3", c.endpoint, url.QueryEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return nil, fmt.Errorf("deepgram tts error: status=%d, body=%s", resp.StatusCode, bytes.TrimSpace(b))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("deepgram tts: empty audio in response")
	}

	return &tts.Result{Audio: audio, Chunks: 1, Format: "mp3"}, nil
}
