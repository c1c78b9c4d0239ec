package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/label-scan/internal/imagesource"
)

// Gemini implements the Analyzer interface by asking Google Gemini directly
type Gemini struct {
	client    *genai.Client
	modelName string
	model     *genai.GenerativeModel
}

// NewGemini creates a new Gemini analyzer
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
		model:     client.GenerativeModel(modelName),
	}, nil
}

// Analyze sends the label image and the category prompt to Gemini
func (g *Gemini) Analyze(ctx context.Context, img *imagesource.AcquiredImage, category Category) (*SafetyReport, error) {
	pngData, err := toPNG(img)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects the format suffix, not the full MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(analysisPrompt(category)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: generating content: %w", ErrNetworkFailure, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return parseReport(text)
}

// Assistant returns an Assistant sharing this client
func (g *Gemini) Assistant() *GeminiAssistant {
	return &GeminiAssistant{model: g.client.GenerativeModel(g.modelName)}
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no response from gemini", ErrMalformedResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: empty response from gemini", ErrMalformedResponse)
	}
	return text.String(), nil
}
