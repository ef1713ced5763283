package vision

import (
	"fmt"
	"net/http"
)

// Options configures whichever analyzer NewAnalyzer builds.
type Options struct {
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

// NewAnalyzer returns the analyzer for a provider name ("openai" or "gemini").
func NewAnalyzer(provider string, opts Options) (Analyzer, error) {
	switch provider {
	case "openai", "":
		return NewOpenAIAnalyzer(OpenAIOpts(opts)), nil
	case "gemini":
		return NewGeminiAnalyzer(GeminiOpts(opts)), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", provider)
	}
}
