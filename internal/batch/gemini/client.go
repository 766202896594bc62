package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"

	"BatchRace/internal/batch"
)

// Name имя провайдера в выводе сравнения.
const Name = "Gemini"

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Терминальные состояния batch-задания.
const (
	stateSucceeded = "JOB_STATE_SUCCEEDED"
	stateFailed    = "JOB_STATE_FAILED"
	stateCancelled = "JOB_STATE_CANCELLED"
	stateExpired   = "JOB_STATE_EXPIRED"
)

// Client гоняет фиксированный набор звонков через Gemini Batch API (инлайн-запросы).
// Задание создаётся через упорядоченный список транспортных стратегий: сначала
// REST с API-ключом, затем OAuth-клиент по ADC. Обработчик задания запоминает,
// какая стратегия его создала, и опрашивает статус через неё же.
type Client struct {
	http         *http.Client
	apiKey       string
	model        string
	pollInterval time.Duration
	baseURL      string // перекрывается в тестах
	logger       *zap.SugaredLogger
}

func New(apiKey, model string, pollInterval time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		http:         http.DefaultClient,
		apiKey:       apiKey,
		model:        model,
		pollInterval: pollInterval,
		baseURL:      defaultBaseURL,
		logger:       logger,
	}
}

// transport одна стратегия доставки запросов к Batch API.
type transport struct {
	name      string
	client    func(ctx context.Context) (*http.Client, error)
	authorize func(req *http.Request)
}

// transports возвращает стратегии в порядке, в котором они пробуются при создании задания.
func (c *Client) transports() []transport {
	return []transport{
		{
			name: "api-key",
			client: func(ctx context.Context) (*http.Client, error) {
				if strings.TrimSpace(c.apiKey) == "" {
					return nil, errors.New("empty API key")
				}
				return c.http, nil
			},
			authorize: func(req *http.Request) {
				req.Header.Set("x-goog-api-key", c.apiKey)
			},
		},
		{
			name: "adc",
			client: func(ctx context.Context) (*http.Client, error) {
				hc, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/generative-language")
				if err != nil {
					return nil, errors.New("ADC credentials not found. Set GOOGLE_APPLICATION_CREDENTIALS to a service account JSON or run with default credentials")
				}
				return hc, nil
			},
			// Авторизацию несёт сам OAuth-клиент.
			authorize: func(req *http.Request) {},
		},
	}
}

// jobHandle непрозрачный идентификатор задания вместе с создавшей его стратегией.
type jobHandle struct {
	name string // например batches/abc123
	tr   transport
	hc   *http.Client
}

// Типы инлайн-запроса. Формат зафиксирован Generative Language Batch API;
// metadata.key связывает ответ с исходным звонком.
type batchRequest struct {
	Batch batchSpec `json:"batch"`
}

type batchSpec struct {
	DisplayName string      `json:"displayName"`
	InputConfig inputConfig `json:"inputConfig"`
}

type inputConfig struct {
	Requests requestsWrapper `json:"requests"`
}

type requestsWrapper struct {
	Requests []inlinedRequest `json:"requests"`
}

type inlinedRequest struct {
	Request  generateRequest   `json:"request"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

// operation долгоживущая операция batch-задания.
type operation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Metadata struct {
		State string `json:"state"`
	} `json:"metadata"`
	Error    *rpcStatus `json:"error,omitempty"`
	Response struct {
		InlinedResponses struct {
			InlinedResponses []inlinedResponse `json:"inlinedResponses"`
		} `json:"inlinedResponses"`
	} `json:"response"`
}

type rpcStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type inlinedResponse struct {
	Metadata map[string]string `json:"metadata"`
	Response *generateResponse `json:"response"`
	Error    *rpcStatus        `json:"error"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

// buildRequests собирает инлайн-запросы batch-задания, по одному на звонок.
func buildRequests(calls []batch.Call) []inlinedRequest {
	reqs := make([]inlinedRequest, 0, len(calls))
	for _, call := range calls {
		reqs = append(reqs, inlinedRequest{
			Request: generateRequest{
				Contents: []content{
					{Role: "user", Parts: []part{{Text: batch.ExtractionPrompt(call.Transcript)}}},
				},
				GenerationConfig: generationConfig{
					Temperature:      0.1,
					ResponseMIMEType: "application/json",
				},
			},
			Metadata: map[string]string{"key": call.ID},
		})
	}
	return reqs
}

// Run выполняет полный пайплайн и возвращает разобранные результаты.
func (c *Client) Run(ctx context.Context, calls []batch.Call) ([]batch.Result, error) {
	c.logger.Infow("Creating batch job", "provider", Name, "requests", len(calls))
	handle, err := c.createJob(ctx, calls)
	if err != nil {
		return nil, err
	}
	c.logger.Infow("Batch job created", "provider", Name, "name", handle.name, "transport", handle.tr.name)

	op, err := c.waitForCompletion(ctx, handle)
	if err != nil {
		return nil, err
	}

	return parseResults(op, calls, c.logger), nil
}

// createJob пробует стратегии по порядку; каждая пробуется ровно один раз.
// Ошибка одной стратегии лишь переводит к следующей, ошибки всех — фатальна для пайплайна.
func (c *Client) createJob(ctx context.Context, calls []batch.Call) (*jobHandle, error) {
	payload := batchRequest{
		Batch: batchSpec{
			DisplayName: "entity-extraction-" + uuid.NewString(),
			InputConfig: inputConfig{Requests: requestsWrapper{Requests: buildRequests(calls)}},
		},
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchGenerateContent", c.baseURL, c.model)

	var errs []error
	for _, tr := range c.transports() {
		hc, err := tr.client(ctx)
		if err != nil {
			c.logger.Warnw("Transport unavailable", "provider", Name, "transport", tr.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", tr.name, err))
			continue
		}

		op, err := c.postJob(ctx, hc, tr, url, body)
		if err != nil {
			c.logger.Warnw("Transport failed", "provider", Name, "transport", tr.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", tr.name, err))
			continue
		}

		return &jobHandle{name: op.Name, tr: tr, hc: hc}, nil
	}

	return nil, fmt.Errorf("create batch job: all transports failed: %w", errors.Join(errs...))
}

func (c *Client) postJob(ctx context.Context, hc *http.Client, tr transport, url string, body []byte) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	tr.authorize(req)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return nil, fmt.Errorf("gemini batch error: status=%d, body=%s", resp.StatusCode, bytes.TrimSpace(b))
	}

	var op operation
	if err := json.NewDecoder(io.LimitReader(resp.Body, 5<<20)).Decode(&op); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	if strings.TrimSpace(op.Name) == "" {
		return nil, errors.New("empty operation name in response")
	}
	return &op, nil
}

// waitForCompletion опрашивает задание с фиксированным интервалом до терминального состояния.
func (c *Client) waitForCompletion(ctx context.Context, h *jobHandle) (*operation, error) {
	started := time.Now()
	for polls := 1; ; polls++ {
		op, err := c.getJob(ctx, h)
		if err != nil {
			return nil, err
		}

		switch op.Metadata.State {
		case stateSucceeded:
			return op, nil
		case stateFailed, stateCancelled, stateExpired:
			if op.Error != nil {
				return nil, fmt.Errorf("batch finished with state %s: %s", op.Metadata.State, op.Error.Message)
			}
			return nil, fmt.Errorf("batch finished with state %q", op.Metadata.State)
		}
		// Страховка на случай, когда state не заполнен, а операция уже завершена.
		if op.Done {
			if op.Error != nil {
				return nil, fmt.Errorf("batch failed: %s", op.Error.Message)
			}
			return op, nil
		}

		if polls%3 == 0 {
			c.logger.Infow("Still processing",
				"provider", Name,
				"state", op.Metadata.State,
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

func (c *Client) getJob(ctx context.Context, h *jobHandle) (*operation, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, h.name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	h.tr.authorize(req)

	resp, err := h.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieve batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return nil, fmt.Errorf("gemini batch error: status=%d, body=%s", resp.StatusCode, bytes.TrimSpace(b))
	}

	var op operation
	if err := json.NewDecoder(io.LimitReader(resp.Body, 20<<20)).Decode(&op); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	return &op, nil
}

// parseResults разбирает инлайн-ответы завершённого задания. Идентификатор берётся
// из metadata.key; если провайдер его не вернул — по порядку входного списка.
// Кривой ответ пропускается с предупреждением и не валит весь batch.
func parseResults(op *operation, calls []batch.Call, logger *zap.SugaredLogger) []batch.Result {
	var results []batch.Result

	for idx, ir := range op.Response.InlinedResponses.InlinedResponses {
		callID := ir.Metadata["key"]
		if callID == "" && idx < len(calls) {
			callID = calls[idx].ID
		}

		if ir.Error != nil {
			logger.Warnw("Skipping failed response", "provider", Name, "callID", callID, "error", ir.Error.Message)
			continue
		}
		if ir.Response == nil || len(ir.Response.Candidates) == 0 {
			logger.Warnw("Skipping response without candidates", "provider", Name, "callID", callID)
			continue
		}

		var sb strings.Builder
		for _, p := range ir.Response.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}

		var ex batch.Extraction
		if err := json.Unmarshal([]byte(strings.TrimSpace(sb.String())), &ex); err != nil {
			logger.Warnw("Skipping response with malformed content", "provider", Name, "callID", callID, "error", err)
			continue
		}

		results = append(results, batch.Result{CallID: callID, Data: ex})
	}

	return results
}
