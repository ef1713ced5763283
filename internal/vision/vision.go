// Package vision sends a captured still to a vision-language model and turns
// its reply into an AnalysisResult.
package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/anders-m-mygind/masa-app/internal/capture"
)

// Prompt is the fixed instruction sent with every image.
const Prompt = "Identify the product in the image, name the brand, and infer the brand's country of origin. " +
	"Answer in JSON with keys: brand, country, confidence (low|medium|high), " +
	"is_american (true|false|unknown), and reasoning (short)."

// Display fallbacks for fields the model left out.
const (
	UnknownValue     = "Unknown"
	NoReasoningValue = "No reasoning provided."
)

// Confidence is the model's self-reported certainty.
type Confidence string

const (
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
	ConfidenceUnknown Confidence = UnknownValue
)

// ParseConfidence normalizes a model-supplied confidence string.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceLow:
		return ConfidenceLow
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceHigh:
		return ConfidenceHigh
	default:
		return ConfidenceUnknown
	}
}

// Nationality is the tri-state is_american answer.
type Nationality int

const (
	NationalityIndeterminate Nationality = iota
	NationalityAmerican
	NationalityForeign
)

func (n Nationality) String() string {
	switch n {
	case NationalityAmerican:
		return "true"
	case NationalityForeign:
		return "false"
	default:
		return "unknown"
	}
}

// Outcome tells whether the model reply could be read at all.
type Outcome int

const (
	// OutcomeParsed means the reply was a JSON object. Individual fields may
	// still have fallen back.
	OutcomeParsed Outcome = iota
	// OutcomeDegraded means the reply was not a JSON object and every field
	// holds its fallback.
	OutcomeDegraded
)

func (o Outcome) String() string {
	if o == OutcomeDegraded {
		return "degraded"
	}
	return "parsed"
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// AnalysisResult is the model's judgment about one still. Every display field
// is non-empty.
type AnalysisResult struct {
	Brand      string
	Country    string
	Confidence Confidence
	IsAmerican Nationality
	Reasoning  string
	Outcome    Outcome
	// Content is the raw message content the model returned.
	Content string
	Model   string
	Usage   Usage
}

// Analyzer sends one still to a remote model per call. Callers must not run two
// calls for the same still concurrently.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, still *capture.StillImage, credential string) (*AnalysisResult, error)
}

// TransportError is returned when the endpoint could not be reached or answered
// with a non-success status. StatusCode is 0 for network failures.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("analysis request failed: %v", e.Err)
	}
	return fmt.Sprintf("analysis request failed with HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
