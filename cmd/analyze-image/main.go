// Command analyze-image runs a single image file through the same analysis
// and verdict steps as the scanner.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anders-m-mygind/masa-app/internal/camera"
	"github.com/anders-m-mygind/masa-app/internal/capture"
	"github.com/anders-m-mygind/masa-app/internal/config"
	"github.com/anders-m-mygind/masa-app/internal/credential"
	"github.com/anders-m-mygind/masa-app/internal/storage"
	"github.com/anders-m-mygind/masa-app/internal/verdict"
	"github.com/anders-m-mygind/masa-app/internal/vision"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [openai|gemini]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  MASA_API_KEY - API key (defaults to the key stored by the scanner)\n")
		fmt.Fprintf(os.Stderr, "  MASA_MODEL   - Model override\n")
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	provider := cfg.Analysis.Provider
	if len(os.Args) >= 3 {
		provider = strings.ToLower(os.Args[2])
	}

	key, err := apiKey(cfg, provider)
	if err != nil {
		log.Fatal().Err(err).Msg("no API key")
	}

	analyzer, err := vision.NewAnalyzer(provider, vision.Options{
		BaseURL:     cfg.Analysis.BaseURL,
		Model:       cfg.Analysis.Model,
		Temperature: cfg.Analysis.Temperature,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create analyzer")
	}

	ctx := context.Background()
	feed, err := camera.NewFileDevice(os.Args[1]).Open(ctx, camera.RearCamera)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open image")
	}
	defer feed.Close()

	still, err := capture.Capture(ctx, feed)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode image")
	}

	result, err := analyzer.AnalyzeImage(ctx, still, key)
	if err != nil {
		log.Fatal().Err(err).Msg("analysis failed")
	}
	printResult(result)
}

func apiKey(cfg *config.Config, provider string) (string, error) {
	shape, _, err := credential.ForProvider(provider, "")
	if err != nil {
		return "", err
	}
	if k := credential.Clean(os.Getenv("MASA_API_KEY")); k != "" {
		return k, nil
	}

	var encryptionKey []byte
	if cfg.StoreKey != "" {
		if encryptionKey, err = storage.DeriveKey(cfg.StoreKey); err != nil {
			return "", err
		}
	}
	settings, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		return "", err
	}
	defer settings.Close()

	creds, err := credential.NewStore(settings, shape)
	if err != nil {
		return "", err
	}
	if !creds.Usable() {
		return "", fmt.Errorf("set MASA_API_KEY or store a key starting with %s in the scanner", shape.Hint())
	}
	return creds.Get(), nil
}

func printResult(r *vision.AnalysisResult) {
	v := verdict.Interpret(r)

	fmt.Printf("%s [%s]\n", v.Label, v.Pill)
	fmt.Printf("  Brand:      %s\n", r.Brand)
	fmt.Printf("  Country:    %s\n", r.Country)
	fmt.Printf("  Confidence: %s\n", r.Confidence)
	fmt.Printf("  Reasoning:  %s\n", r.Reasoning)
	fmt.Printf("  Outcome:    %s\n", r.Outcome)
	fmt.Printf("\nModel: %s\n", r.Model)
	fmt.Printf("Tokens: input=%d, output=%d, total=%d\n", r.Usage.InputTokens, r.Usage.OutputTokens, r.Usage.TotalTokens)
	fmt.Printf("Cost: $%.6f\n", r.Usage.CostUSD)
}
