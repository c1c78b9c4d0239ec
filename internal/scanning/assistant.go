package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// AssistantRequest is one follow-up question about a report
type AssistantRequest struct {
	Query    string        `json:"query"`
	Context  *SafetyReport `json:"context"`
	Category Category      `json:"category"`
}

// Assistant answers questions about an already computed report. Calls are stateless.
type Assistant interface {
	Ask(ctx context.Context, req AssistantRequest) (string, error)
}

// ServiceAssistant calls the analysis service's /chat endpoint
type ServiceAssistant struct {
	baseURL string
	client  *http.Client
}

// NewServiceAssistant creates a new ServiceAssistant
func NewServiceAssistant(baseURL string, timeout time.Duration) (*ServiceAssistant, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("assistant service url is required")
	}
	return &ServiceAssistant{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type assistantResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

// Ask posts the question with its report context
func (s *ServiceAssistant) Ask(ctx context.Context, areq AssistantRequest) (string, error) {
	payload, err := json.Marshal(areq)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: calling assistant: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", ErrNetworkFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrNetworkFailure, resp.StatusCode, excerpt(data))
	}

	var out assistantResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: assistant error: %s", ErrNetworkFailure, out.Error)
	}
	return out.Reply, nil
}

// GeminiAssistant answers with Gemini, see Gemini.Assistant
type GeminiAssistant struct {
	model *genai.GenerativeModel
}

// Ask sends the consultant prompt to Gemini
func (g *GeminiAssistant) Ask(ctx context.Context, req AssistantRequest) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(assistantPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("%w: generating content: %w", ErrNetworkFailure, err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
