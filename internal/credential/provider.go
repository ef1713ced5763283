package credential

import "fmt"

// ForProvider returns the credential shape and verifier settings for a
// provider name ("openai" or "gemini"). baseURL overrides the provider's
// default API root when set.
func ForProvider(provider, baseURL string) (Shape, VerifierOpts, error) {
	switch provider {
	case "openai", "":
		if baseURL == "" {
			baseURL = OpenAIBaseURL
		}
		return OpenAIShape, VerifierOpts{BaseURL: baseURL, Auth: AuthBearer}, nil
	case "gemini":
		if baseURL == "" {
			baseURL = GeminiBaseURL
		}
		return GeminiShape, VerifierOpts{BaseURL: baseURL, Auth: AuthGoogAPIKey}, nil
	default:
		return Shape{}, VerifierOpts{}, fmt.Errorf("unknown provider %q", provider)
	}
}
