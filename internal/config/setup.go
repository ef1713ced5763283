package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrSetupAborted is returned when the user leaves the setup wizard.
var ErrSetupAborted = errors.New("setup cancelled")

// envOrder is the order keys are written to config.env.
var envOrder = []string{"MASA_PROVIDER", "MASA_CAMERA", "MASA_STORE_KEY"}

// SetupResult holds what the first-run wizard collected. The API key is not
// written to config.env; the caller stores it in the credential slot.
type SetupResult struct {
	Provider   string
	APIKey     string
	Camera     string
	ConfigPath string
}

// NeedsSetup reports whether config.env is missing.
func NeedsSetup() bool {
	path, err := EnvFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard asks for the provider, API key and camera source, then
// writes config.env. validateKey runs against the key before the form
// accepts it.
func RunSetupWizard(validateKey func(provider, key string) error) (*SetupResult, error) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Made in America? - First-time Setup"))
	fmt.Println()

	res := &SetupResult{Provider: ProviderOpenAI, Camera: DefaultCamera}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Vision provider").
				Options(
					huh.NewOption("OpenAI (gpt-4o-mini)", ProviderOpenAI),
					huh.NewOption("Google Gemini", ProviderGemini),
				).
				Value(&res.Provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				Description("Stored locally in the settings database, never in config.env").
				EchoMode(huh.EchoModePassword).
				Value(&res.APIKey).
				Validate(func(s string) error {
					s = strings.Join(strings.Fields(s), "")
					if s == "" {
						return errors.New("API key is required")
					}
					if validateKey == nil {
						return nil
					}
					return validateKey(res.Provider, s)
				}),
			huh.NewInput().
				Title("Camera source").
				Description("webcam:0, an http(s) snapshot URL, or an image file/directory").
				Value(&res.Camera).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("camera source is required")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrSetupAborted
		}
		return nil, err
	}
	res.APIKey = strings.Join(strings.Fields(res.APIKey), "")

	values := map[string]string{
		"MASA_PROVIDER":  res.Provider,
		"MASA_CAMERA":    strings.TrimSpace(res.Camera),
		"MASA_STORE_KEY": GenerateStoreKey(),
	}
	path, err := EnvFilePath()
	if err != nil {
		return nil, err
	}
	if err := WriteEnvFile(path, values); err != nil {
		return nil, fmt.Errorf("saving configuration: %w", err)
	}
	for k, v := range values {
		os.Setenv(k, v)
	}
	res.ConfigPath = path

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + path))
	fmt.Println()

	return res, nil
}

// GenerateStoreKey returns a random passphrase for settings encryption.
func GenerateStoreKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("masa-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// WriteEnvFile writes values to path with 0600 permissions. Known keys come
// first in a fixed order, the rest sorted.
func WriteEnvFile(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool, len(values))
	keys := make([]string, 0, len(values))
	for _, k := range envOrder {
		if _, ok := values[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range values {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	for _, k := range keys {
		if _, err := fmt.Fprintf(f, "%s=%q\n", k, values[k]); err != nil {
			return fmt.Errorf("failed to write %s: %w", k, err)
		}
	}
	return nil
}
