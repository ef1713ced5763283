// Package assets serves the scanner's static files over TLS for phones on the
// local network.
package assets

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPort = 8443
	CertDir     = "certs"
	KeyFile     = "localhost-key.pem"
	CertFile    = "localhost-cert.pem"
	IndexFile   = "index.html"

	CertCommand = `openssl req -x509 -newkey rsa:2048 -nodes -keyout certs/localhost-key.pem -out certs/localhost-cert.pem -days 365 -subj "/CN=localhost"`
)

// ErrMissingCerts is returned by CheckCerts when either PEM file is absent.
var ErrMissingCerts = errors.New("missing TLS certs")

var mimeTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".css":  "text/css",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
}

// ContentType maps a file extension to its content type.
func ContentType(name string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// CheckCerts returns the key and certificate paths under root, or
// ErrMissingCerts if either does not exist.
func CheckCerts(root string) (keyPath, certPath string, err error) {
	keyPath = filepath.Join(root, CertDir, KeyFile)
	certPath = filepath.Join(root, CertDir, CertFile)
	for _, p := range []string{keyPath, certPath} {
		if _, statErr := os.Stat(p); statErr != nil {
			return "", "", fmt.Errorf("%w: %s", ErrMissingCerts, p)
		}
	}
	return keyPath, certPath, nil
}

// NewRouter returns the asset handler rooted at root.
func NewRouter(root string) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(requestLogger)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:         300,
	}))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/*", &fileHandler{root: filepath.Clean(root)})
	return mux
}

// NewServer wraps NewRouter in an http.Server listening on port.
func NewServer(root string, port int) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", port),
		Handler:      NewRouter(root),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// fileHandler serves files from root. Unknown paths fall back to index.html.
type fileHandler struct {
	root string
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimLeft(r.URL.Path, "/")
	if rel == "" {
		rel = IndexFile
	}
	path := filepath.Join(h.root, filepath.FromSlash(rel))
	if path != h.root && !strings.HasPrefix(path, h.root+string(filepath.Separator)) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if private(strings.TrimPrefix(path, h.root)) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(h.root, IndexFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("asset read failed")
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", ContentType(path))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// private reports whether a root-relative path is under the TLS material
// directory or names a dotfile, neither of which is ever served.
func private(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
		// The first non-empty segment is the top-level entry under root.
		if strings.EqualFold(part, CertDir) && i <= 1 {
			return true
		}
	}
	return false
}
