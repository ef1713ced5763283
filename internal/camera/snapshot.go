package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSnapshotTimeout bounds a single frame fetch.
	DefaultSnapshotTimeout = 10 * time.Second
	// DefaultMaxFrameSize is the largest snapshot accepted (10MB).
	DefaultMaxFrameSize = 10 * 1024 * 1024
)

// SnapshotDevice reads frames from a network camera's still-image endpoint,
// e.g. a phone running an IP webcam app (`https://192.168.1.20:8080/shot.jpg`).
type SnapshotDevice struct {
	url     *url.URL
	client  *resty.Client
	maxSize int
}

func NewSnapshotDevice(rawURL string) (*SnapshotDevice, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid snapshot url scheme %q", u.Scheme)
	}
	return &SnapshotDevice{
		url:     u,
		client:  resty.New().SetDebug(false).SetTimeout(DefaultSnapshotTimeout),
		maxSize: DefaultMaxFrameSize,
	}, nil
}

// WithTimeout sets a custom per-frame timeout.
func (d *SnapshotDevice) WithTimeout(timeout time.Duration) *SnapshotDevice {
	d.client.SetTimeout(timeout)
	return d
}

// WithMaxSize sets a custom maximum frame size in bytes.
func (d *SnapshotDevice) WithMaxSize(maxSize int) *SnapshotDevice {
	d.maxSize = maxSize
	return d
}

func (d *SnapshotDevice) Name() string {
	return "snapshot:" + d.url.Host
}

// SecureContext is true for https and for loopback hosts, the same rule a
// browser applies before it grants camera access.
func (d *SnapshotDevice) SecureContext() bool {
	if d.url.Scheme == "https" {
		return true
	}
	host := d.url.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (d *SnapshotDevice) Open(ctx context.Context, c Constraints) (Feed, error) {
	feed := &snapshotFeed{device: d}
	// One fetch up front validates reachability and credentials embedded in
	// the URL, and tells us the frame size.
	if _, err := feed.Frame(ctx); err != nil {
		return nil, err
	}
	return feed, nil
}

func (d *SnapshotDevice) fetch(ctx context.Context) ([]byte, error) {
	res, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(d.url.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	body := res.RawBody()
	defer body.Close()

	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrPermissionDenied, res.StatusCode())
	default:
		return nil, fmt.Errorf("%w: status %d", ErrDeviceUnavailable, res.StatusCode())
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: expected image/*, got %s", ErrDeviceUnavailable, contentType)
	}

	if n := res.RawResponse.ContentLength; n > int64(d.maxSize) {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit of %d bytes", ErrDeviceUnavailable, n, d.maxSize)
	}

	// Content-Length may be missing or wrong; never read past the limit.
	data, err := io.ReadAll(io.LimitReader(body, int64(d.maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", ErrDeviceUnavailable, err)
	}
	if len(data) > d.maxSize {
		return nil, fmt.Errorf("%w: frame exceeds limit of %d bytes", ErrDeviceUnavailable, d.maxSize)
	}
	return data, nil
}

type snapshotFeed struct {
	device *SnapshotDevice

	mu     sync.Mutex
	width  int
	height int
	closed bool
}

// Dimensions reports the size of the most recently fetched frame.
func (f *snapshotFeed) Dimensions() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

func (f *snapshotFeed) Frame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, ErrFeedClosed
	}

	data, err := f.device.fetch(ctx)
	if err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrNoFrame, err)
	}

	b := img.Bounds()
	f.mu.Lock()
	f.width, f.height = b.Dx(), b.Dy()
	f.mu.Unlock()

	log.Debug().Str("device", f.device.Name()).Str("format", format).Int("bytes", len(data)).Msg("snapshot frame")
	return img, nil
}

func (f *snapshotFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
