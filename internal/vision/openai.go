package vision

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/anders-m-mygind/masa-app/internal/capture"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultTemperature   = 0.2
	DefaultTimeout       = 60 * time.Second
)

// gpt-4o-mini pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 0.15
	openaiOutputPricePerMillion = 0.60
)

// OpenAIOpts configures an OpenAIAnalyzer. Zero values take the defaults.
type OpenAIOpts struct {
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

// OpenAIAnalyzer talks to a chat-completions endpoint with image input.
type OpenAIAnalyzer struct {
	baseURL     string
	model       string
	temperature float32
	httpClient  *http.Client
}

func NewOpenAIAnalyzer(opts OpenAIOpts) *OpenAIAnalyzer {
	a := &OpenAIAnalyzer{
		baseURL:     opts.BaseURL,
		model:       opts.Model,
		temperature: opts.Temperature,
		httpClient:  opts.HTTPClient,
	}
	if a.baseURL == "" {
		a.baseURL = DefaultOpenAIBaseURL
	}
	if a.model == "" {
		a.model = DefaultOpenAIModel
	}
	if a.temperature == 0 {
		a.temperature = DefaultTemperature
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return a
}

// AnalyzeImage implements the Analyzer interface using OpenAI.
func (o *OpenAIAnalyzer) AnalyzeImage(ctx context.Context, still *capture.StillImage, credential string) (*AnalysisResult, error) {
	config := openai.DefaultConfig(credential)
	config.BaseURL = o.baseURL
	config.HTTPClient = o.httpClient
	client := openai.NewClientWithConfig(config)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: Prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: still.DataURI()},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, toTransportError(err)
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	result := ParseResult(content)
	result.Model = o.model

	usage := Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		TotalTokens:  int64(resp.Usage.TotalTokens),
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, openaiInputPricePerMillion, openaiOutputPricePerMillion)
	result.Usage = usage

	log.Info().
		Str("model", o.model).
		Str("still", still.ID.String()).
		Str("outcome", result.Outcome.String()).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return result, nil
}

func toTransportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Err: err}
}
