package cartesia

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"BatchRace/internal/config"
	"BatchRace/internal/tts"
)

const (
	defaultEndpoint = "wss://api.cartesia.ai/tts/websocket"
	apiVersion      = "2025-04-16"
)

// Client реализует синтез речи через websocket-стриминг Cartesia.
// Аудио приходит фрагментами base64; фрагменты считаются и склеиваются.
type Client struct {
	cfg      config.CartesiaTTSConfig
	dialer   *websocket.Dialer
	endpoint string // перекрывается в тестах
	logger   *zap.SugaredLogger
}

func New(cfg config.CartesiaTTSConfig, logger *zap.SugaredLogger) *Client {
	return &Client{cfg: cfg, dialer: websocket.DefaultDialer, endpoint: defaultEndpoint, logger: logger}
}

func (c *Client) Name() string { return "Cartesia" }

// Ready проверяет конфигурацию до открытия соединения.
func (c *Client) Ready() error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.New("cartesia tts: empty API key (set CARTESIA_API_KEY in .env/ENV)")
	}
	if strings.TrimSpace(c.cfg.Voice) == "" {
		return errors.New("cartesia tts: empty voice id")
	}
	return nil
}

// request формат запроса websocket-сессии. Скорость и эмоции передаются
// через экспериментальные контролы голоса.
type request struct {
	ContextID    string       `json:"context_id"`
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voice        `json:"voice"`
	Language     string       `json:"language,omitempty"`
	OutputFormat outputFormat `json:"output_format"`
	Continue     bool         `json:"continue"`
}

type voice struct {
	Mode     string         `json:"mode"`
	ID       string         `json:"id"`
	Controls *voiceControls `json:"__experimental_controls,omitempty"`
}

type voiceControls struct {
	Speed   float64  `json:"speed,omitempty"`
	Emotion []string `json:"emotion,omitempty"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// message входящее сообщение websocket-сессии.
type message struct {
	Type      string `json:"type"` // chunk|done|error|timestamps
	Data      string `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ContextID string `json:"context_id,omitempty"`
}

// buildRequest собирает запрос сессии по конфигурации.
func buildRequest(cfg config.CartesiaTTSConfig, text string) request {
	var controls *voiceControls
	if cfg.Speed != 0 || len(cfg.Emotions) > 0 {
		controls = &voiceControls{Speed: cfg.Speed, Emotion: cfg.Emotions}
	}
	return request{
		ContextID:  uuid.NewString(),
		ModelID:    cfg.Model,
		Transcript: text,
		Voice:      voice{Mode: "id", ID: cfg.Voice, Controls: controls},
		Language:   cfg.Language,
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: 44100,
		},
		Continue: false,
	}
}

// Synthesize открывает websocket-сессию, шлёт один запрос и читает фрагменты до done.
func (c *Client) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cartesia tts: empty input text")
	}

	u := fmt.Sprintf("%s?api_key=%s&cartesia_version=%s", c.endpoint, url.QueryEscape(c.cfg.APIKey), apiVersion)
	conn, resp, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("cartesia tts: dial: status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("cartesia tts: dial: %w", err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
	}

	if err := conn.WriteJSON(buildRequest(c.cfg, text)); err != nil {
		return nil, fmt.Errorf("cartesia tts: send request: %w", err)
	}

	res := &tts.Result{Format: "pcm"}
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("cartesia tts: read: %w", err)
		}

		switch msg.Type {
		case "chunk":
			data, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				return nil, fmt.Errorf("cartesia tts: decode chunk: %w", err)
			}
			res.Chunks++
			res.Audio = append(res.Audio, data...)
			c.logger.Debugw("Audio chunk received", "seq", res.Chunks, "bytes", len(data))
		case "done":
			if res.Chunks == 0 {
				return nil, errors.New("cartesia tts: no audio chunks received")
			}
			return res, nil
		case "error":
			return nil, fmt.Errorf("cartesia tts: %s", msg.Error)
		default:
			// Служебные сообщения (timestamps и пр.) пропускаем.
		}
	}
}
