package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// AuthStyle selects how the credential is attached to the check request.
type AuthStyle int

const (
	AuthBearer AuthStyle = iota
	AuthGoogAPIKey
)

// VerificationError is returned when the provider rejects the credential.
// Detail holds the raw response body, or "HTTP <status>" when it was empty.
type VerificationError struct {
	StatusCode int
	Detail     string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("credential check failed: %s", e.Detail)
}

type VerifierOpts struct {
	BaseURL string
	Auth    AuthStyle
	Timeout time.Duration
}

// Verifier performs the user-triggered live check of a credential by listing
// the provider's models. It is never on the capture/analyze path.
type Verifier struct {
	httpClient *resty.Client
	auth       AuthStyle
}

func NewVerifier(opts VerifierOpts) *Verifier {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{
		httpClient: resty.New().
			SetDebug(false).
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		auth: opts.Auth,
	}
}

// Verify returns nil when the provider answers the models listing with 200.
func (v *Verifier) Verify(ctx context.Context, credential string) error {
	req := v.httpClient.NewRequest().SetContext(ctx)
	switch v.auth {
	case AuthGoogAPIKey:
		req.SetHeader("x-goog-api-key", credential)
	default:
		req.SetAuthToken(credential)
	}

	res, err := req.Get("/models")
	if err != nil {
		return fmt.Errorf("credential check request failed: %w", err)
	}
	if res.StatusCode() != 200 {
		detail := res.String()
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", res.StatusCode())
		}
		return &VerificationError{StatusCode: res.StatusCode(), Detail: detail}
	}
	return nil
}
