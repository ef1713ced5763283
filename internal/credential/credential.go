// Package credential holds the single API credential used for analysis
// requests: persistence in a settings slot, a shape-only usability check and
// an optional live verification against the provider.
package credential

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/anders-m-mygind/masa-app/internal/storage"
)

// SlotKey is the settings key the credential is persisted under.
const SlotKey = "openai_api_key"

// Shape describes what a usable credential looks like for a provider.
type Shape struct {
	Prefixes []string
}

var (
	// OpenAIShape accepts project and legacy OpenAI secret keys.
	OpenAIShape = Shape{Prefixes: []string{"sk-", "sk_"}}
	// GeminiShape accepts Google AI Studio API keys.
	GeminiShape = Shape{Prefixes: []string{"AIza"}}
)

// Usable reports whether c passes the shape check. It never contacts the
// network: a usable credential may still be rejected by the provider.
func (s Shape) Usable(c string) bool {
	if c == "" {
		return false
	}
	// Pasted error payloads and full header values are common mistakes.
	if strings.HasPrefix(c, "Bearer") || strings.HasPrefix(c, "{") {
		return false
	}
	for _, p := range s.Prefixes {
		if strings.HasPrefix(c, p) {
			return true
		}
	}
	return false
}

// Hint returns the prefix shown to users when a credential is rejected.
func (s Shape) Hint() string {
	if len(s.Prefixes) == 0 {
		return ""
	}
	return s.Prefixes[0]
}

// IsUsable checks c against the default OpenAI shape.
func IsUsable(c string) bool {
	return OpenAIShape.Usable(c)
}

// Clean removes every whitespace character from raw input.
func Clean(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// Store keeps the current credential in memory and mirrors every change into
// a settings slot so it survives restarts.
type Store struct {
	mu       sync.RWMutex
	settings storage.SettingsStore
	shape    Shape
	value    string
}

// NewStore loads any previously persisted credential from settings.
func NewStore(settings storage.SettingsStore, shape Shape) (*Store, error) {
	value, err := settings.Get(SlotKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return &Store{settings: settings, shape: shape, value: value}, nil
}

// Set strips whitespace from raw and persists it, or clears the slot when
// nothing is left. It returns the cleaned value.
func (s *Store) Set(raw string) (string, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return "", s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settings.Set(SlotKey, cleaned); err != nil {
		return cleaned, fmt.Errorf("failed to persist credential: %w", err)
	}
	s.value = cleaned
	log.Debug().Int("length", len(cleaned)).Msg("credential stored")
	return cleaned, nil
}

// Get returns the current credential, or "" when none is set.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Clear removes the credential from memory and from the settings slot.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	if err := s.settings.Delete(SlotKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	log.Debug().Msg("credential cleared")
	return nil
}

// Usable reports whether the current credential passes the store's shape check.
func (s *Store) Usable() bool {
	return s.shape.Usable(s.Get())
}

// Present reports whether any credential is stored, usable or not.
func (s *Store) Present() bool {
	return s.Get() != ""
}

// Shape returns the shape the store validates against.
func (s *Store) Shape() Shape {
	return s.shape
}
