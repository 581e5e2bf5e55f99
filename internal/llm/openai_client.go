package llm

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

	"aegis/internal/config"
	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
	"aegis/internal/logging"
)

// openaiClient speaks the OpenAI-compatible chat completions API. Both the
// primary (Groq-style) and secondary (OpenAI-style) providers share this
// implementation; only base URL, key, model, and provenance tag differ.
type openaiClient struct {
	provider   feedback.Provider
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// New selects the classifier for the current configuration: the primary
// provider when its key is set, otherwise the secondary, otherwise the mock
// path backed by the heuristic analyzer. Exactly one provider is attempted
// per call.
func New(cfg *config.Config, heuristic Heuristic, logger logging.Logger) Classifier {
	logger = logging.OrNop(logger)

	if cfg.UseMock() {
		logger.Info("No LLM keys configured (or mock mode forced); using mock classifier")
		return NewMock(heuristic, cfg.MockLatency)
	}

	if cfg.PrimaryLLMKey != "" {
		return newOpenAIClient(feedback.ProviderPrimary, cfg.PrimaryLLMModel, cfg.PrimaryLLMKey, cfg.PrimaryLLMBaseURL, cfg.LLMTimeout, logger)
	}
	return newOpenAIClient(feedback.ProviderSecondary, cfg.SecondaryLLMModel, cfg.SecondaryLLMKey, cfg.SecondaryLLMBaseURL, cfg.LLMTimeout, logger)
}

func newOpenAIClient(provider feedback.Provider, model, apiKey, baseURL string, timeout time.Duration, logger logging.Logger) *openaiClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &openaiClient{
		provider:   provider,
		model:      model,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

func (c *openaiClient) Classify(ctx context.Context, text string) (feedback.Classification, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": text},
		},
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return feedback.Classification{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return feedback.Classification{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("LLM request: POST %s model=%s", endpoint, c.model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return feedback.Classification{}, &aegiserrors.UpstreamUnavailableError{Provider: string(c.provider), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return feedback.Classification{}, &aegiserrors.UpstreamUnavailableError{Provider: string(c.provider), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("LLM error response (%d): %s", resp.StatusCode, string(respBody))
		return feedback.Classification{}, &aegiserrors.UpstreamUnavailableError{
			Provider:   string(c.provider),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return feedback.Classification{}, &aegiserrors.UpstreamBadFormatError{Provider: string(c.provider), Err: err}
	}
	if len(oaiResp.Choices) == 0 {
		return feedback.Classification{}, &aegiserrors.UpstreamUnavailableError{
			Provider: string(c.provider),
			Err:      errors.New("no choices in response"),
		}
	}

	return ParseReply(c.provider, oaiResp.Choices[0].Message.Content)
}
