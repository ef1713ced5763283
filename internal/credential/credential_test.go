package credential

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anders-m-mygind/masa-app/internal/storage"
)

func TestIsUsable(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", false},
		{"project key", "sk-proj-abc123", true},
		{"underscore key", "sk_live_abc", true},
		{"bearer header", "Bearer sk-abc", false},
		{"json error payload", `{"error":{"message":"Incorrect API key"}}`, false},
		{"wrong prefix", "pk-abc", false},
		{"just the word", "sk", false},
		{"gemini key", "AIzaSyA-xyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUsable(tt.value))
		})
	}
}

func TestGeminiShape(t *testing.T) {
	assert.True(t, GeminiShape.Usable("AIzaSyA-xyz"))
	assert.False(t, GeminiShape.Usable("sk-abc"))
	assert.Equal(t, "AIza", GeminiShape.Hint())
	assert.Equal(t, "sk-", OpenAIShape.Hint())
}

func TestClean(t *testing.T) {
	assert.Equal(t, "sk-abc123", Clean("  sk-abc\n123\t "))
	assert.Equal(t, "", Clean(" \n\t"))
}

func TestStore_SetGetClear(t *testing.T) {
	settings := storage.NewMemoryStore()
	store, err := NewStore(settings, OpenAIShape)
	require.NoError(t, err)
	assert.False(t, store.Present())

	cleaned, err := store.Set("  sk-abc 123 ")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", cleaned)
	assert.Equal(t, "sk-abc123", store.Get())
	assert.True(t, store.Usable())

	persisted, _ := settings.Get(SlotKey)
	assert.Equal(t, "sk-abc123", persisted)

	require.NoError(t, store.Clear())
	assert.Equal(t, "", store.Get())
	persisted, _ = settings.Get(SlotKey)
	assert.Equal(t, "", persisted)
}

func TestStore_SetWhitespaceClears(t *testing.T) {
	settings := storage.NewMemoryStore()
	store, err := NewStore(settings, OpenAIShape)
	require.NoError(t, err)

	_, err = store.Set("sk-abc")
	require.NoError(t, err)

	cleaned, err := store.Set("   ")
	require.NoError(t, err)
	assert.Equal(t, "", cleaned)
	assert.False(t, store.Present())
}

func TestStore_UnusableIsStillStored(t *testing.T) {
	store, err := NewStore(storage.NewMemoryStore(), OpenAIShape)
	require.NoError(t, err)

	_, err = store.Set("Bearer sk-abc")
	require.NoError(t, err)
	assert.True(t, store.Present())
	assert.False(t, store.Usable())
}

func TestStore_ReloadFromSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "masa.db")

	settings, err := storage.NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	store, err := NewStore(settings, OpenAIShape)
	require.NoError(t, err)
	_, err = store.Set(" sk-persisted\n")
	require.NoError(t, err)
	require.NoError(t, settings.Close())

	// Simulates a reload of the app
	settings, err = storage.NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	reloaded, err := NewStore(settings, OpenAIShape)
	require.NoError(t, err)
	assert.Equal(t, "sk-persisted", reloaded.Get())

	require.NoError(t, reloaded.Clear())
	require.NoError(t, settings.Close())

	settings, err = storage.NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer settings.Close()
	cleared, err := NewStore(settings, OpenAIShape)
	require.NoError(t, err)
	assert.Equal(t, "", cleared.Get())
}

func TestVerifier_Success(t *testing.T) {
	var req *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer ts.Close()

	v := NewVerifier(VerifierOpts{BaseURL: ts.URL})
	err := v.Verify(context.Background(), "sk-abc")
	require.NoError(t, err)
	assert.Equal(t, "/models", req.URL.Path)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "Bearer sk-abc", req.Header.Get("Authorization"))
}

func TestVerifier_RejectedWithBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer ts.Close()

	v := NewVerifier(VerifierOpts{BaseURL: ts.URL})
	err := v.Verify(context.Background(), "sk-bad")

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, http.StatusUnauthorized, verr.StatusCode)
	assert.Contains(t, verr.Detail, "Incorrect API key provided")
}

func TestVerifier_RejectedEmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	v := NewVerifier(VerifierOpts{BaseURL: ts.URL})
	err := v.Verify(context.Background(), "sk-bad")

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "HTTP 403", verr.Detail)
}

func TestVerifier_GoogAPIKeyHeader(t *testing.T) {
	var req *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
		w.Write([]byte(`{"models":[]}`))
	}))
	defer ts.Close()

	v := NewVerifier(VerifierOpts{BaseURL: ts.URL, Auth: AuthGoogAPIKey})
	require.NoError(t, v.Verify(context.Background(), "AIzaXYZ"))
	assert.Equal(t, "AIzaXYZ", req.Header.Get("x-goog-api-key"))
	assert.Equal(t, "", req.Header.Get("Authorization"))
}

func TestForProvider(t *testing.T) {
	shape, opts, err := ForProvider("openai", "")
	require.NoError(t, err)
	assert.Equal(t, OpenAIShape, shape)
	assert.Equal(t, OpenAIBaseURL, opts.BaseURL)
	assert.Equal(t, AuthBearer, opts.Auth)

	_, opts, err = ForProvider("openai", "http://localhost:8080/v1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", opts.BaseURL)

	shape, opts, err = ForProvider("gemini", "")
	require.NoError(t, err)
	assert.Equal(t, GeminiShape, shape)
	assert.Equal(t, GeminiBaseURL, opts.BaseURL)
	assert.Equal(t, AuthGoogAPIKey, opts.Auth)

	_, _, err = ForProvider("claude", "")
	assert.Error(t, err)
}
