package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/anders-m-mygind/masa-app/internal/app"
	"github.com/anders-m-mygind/masa-app/internal/camera"
	"github.com/anders-m-mygind/masa-app/internal/config"
	"github.com/anders-m-mygind/masa-app/internal/console"
	"github.com/anders-m-mygind/masa-app/internal/credential"
	"github.com/anders-m-mygind/masa-app/internal/history"
	"github.com/anders-m-mygind/masa-app/internal/storage"
	"github.com/anders-m-mygind/masa-app/internal/vision"
)

const logFileName = "masa.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	var setup *config.SetupResult
	if config.NeedsSetup() && config.IsInteractiveTerminal() {
		var err error
		setup, err = config.RunSetupWizard(validateKeyShape)
		if err != nil {
			if errors.Is(err, config.ErrSetupAborted) {
				fmt.Println("\nSetup cancelled.")
				os.Exit(1)
			}
			fatal("setup failed: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	// The console owns the terminal in interactive runs, so logs go to a
	// file there and to stderr otherwise.
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatal("failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, NoColor: true})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	var encryptionKey []byte
	if cfg.StoreKey != "" {
		encryptionKey, err = storage.DeriveKey(cfg.StoreKey)
		if err != nil {
			fatal("failed to derive encryption key: %v", err)
		}
	}
	settings, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		fatal("failed to initialize settings store: %v", err)
	}
	defer settings.Close()
	log.Info().Str("dbPath", cfg.DBPath).Bool("encrypted", encryptionKey != nil).Msg("settings store initialized")

	verifierBaseURL := ""
	if cfg.Analysis.Provider == config.ProviderOpenAI {
		verifierBaseURL = cfg.Analysis.BaseURL
	}
	shape, verifierOpts, err := credential.ForProvider(cfg.Analysis.Provider, verifierBaseURL)
	if err != nil {
		fatal("%v", err)
	}
	creds, err := credential.NewStore(settings, shape)
	if err != nil {
		fatal("failed to load credential: %v", err)
	}
	if setup != nil && setup.APIKey != "" {
		if _, err := creds.Set(setup.APIKey); err != nil {
			fatal("failed to store API key: %v", err)
		}
	}

	analyzer, err := vision.NewAnalyzer(cfg.Analysis.Provider, vision.Options{
		BaseURL:     cfg.Analysis.BaseURL,
		Model:       cfg.Analysis.Model,
		Temperature: cfg.Analysis.Temperature,
	})
	if err != nil {
		fatal("%v", err)
	}
	log.Info().Str("provider", cfg.Analysis.Provider).Str("model", cfg.Analysis.Model).Msg("vision analyzer initialized")

	controller := camera.NewController(cameraSources(cfg.Cameras), camera.ControllerOpts{LockDir: cfg.LockDir})

	renderer := console.NewRenderer(os.Stdout)
	a := app.New(app.Opts{
		Credentials: creds,
		Verifier:    credential.NewVerifier(verifierOpts),
		Camera:      controller,
		Constraints: camera.RearCamera,
		Analyzer:    analyzer,
		History:     history.NewLog(),
		Renderer:    renderer,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stdout, "Made in America? Type help for commands.")
	a.Start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return console.New(a, renderer, os.Stdout).Run(ctx, os.Stdin)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		log.Error().Err(err).Msg("shutdown with error")
	}
	a.Close()
	log.Info().Msg("shutdown complete")
}

// cameraSources turns configured cameras into controller sources, skipping
// entries that don't parse.
func cameraSources(cams []config.Camera) []camera.Source {
	var sources []camera.Source
	for _, c := range cams {
		dev, err := camera.ParseDevice(c.Source)
		if err != nil {
			log.Warn().Err(err).Str("camera", c.Name).Msg("skipping camera")
			continue
		}
		sources = append(sources, camera.Source{Device: dev, Facing: camera.ParseFacing(c.Facing)})
	}
	return sources
}

func validateKeyShape(provider, key string) error {
	shape, _, err := credential.ForProvider(provider, "")
	if err != nil {
		return err
	}
	if !shape.Usable(key) {
		return fmt.Errorf("key should start with %s", shape.Hint())
	}
	return nil
}

// fatal logs and also prints to stderr, since interactive runs log to a file.
func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Error().Msg(msg)
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	os.Exit(1)
}
