package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/anders-m-mygind/masa-app/internal/capture"
)

const DefaultGeminiModel = "gemini-2.5-flash-lite"

// Gemini 2.5 Flash-Lite pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.10
	geminiOutputPricePerMillion = 0.40
)

// GeminiOpts configures a GeminiAnalyzer. Zero values take the defaults.
type GeminiOpts struct {
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

// GeminiAnalyzer uses Google's Gemini API with the same prompt and parsing as
// OpenAIAnalyzer.
type GeminiAnalyzer struct {
	opts GeminiOpts
}

func NewGeminiAnalyzer(opts GeminiOpts) *GeminiAnalyzer {
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	return &GeminiAnalyzer{opts: opts}
}

// AnalyzeImage implements the Analyzer interface using Gemini.
func (g *GeminiAnalyzer) AnalyzeImage(ctx context.Context, still *capture.StillImage, credential string) (*AnalysisResult, error) {
	cfg := &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.opts.HTTPClient,
	}
	if g.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(Prompt),
		{InlineData: &genai.Blob{Data: still.Data, MIMEType: still.MimeType()}},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, g.opts.Model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.opts.Temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, geminiTransportError(err)
	}

	content := resp.Text()
	if obj, err := extractJSONObject(content); err == nil {
		content = obj
	}
	result := ParseResult(content)
	result.Model = g.opts.Model

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(resp.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}
	result.Usage = usage

	log.Info().
		Str("model", g.opts.Model).
		Str("still", still.ID.String()).
		Str("outcome", result.Outcome.String()).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return result, nil
}

func geminiTransportError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.Code, Err: err}
	}
	return &TransportError{Err: err}
}
