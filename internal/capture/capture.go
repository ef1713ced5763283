// Package capture freezes a frame of a live feed into an encoded still image.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/anders-m-mygind/masa-app/internal/camera"
)

const (
	// DefaultWidth and DefaultHeight are used when the device reports a zero
	// frame size.
	DefaultWidth  = 1280
	DefaultHeight = 720
	// Quality is the JPEG encoder quality (0.92 on a 0..1 scale).
	Quality = 92
)

// ErrNoFeed means Capture was called without an active camera.
var ErrNoFeed = errors.New("capture requires an active camera feed")

// StillImage is one encoded frame. It is never modified after Capture returns.
type StillImage struct {
	ID         uuid.UUID
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// MimeType is the media type of Data.
func (s *StillImage) MimeType() string {
	return "image/jpeg"
}

// DataURI returns the still as a base64 data URI.
func (s *StillImage) DataURI() string {
	return "data:" + s.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// Capture reads the current frame of feed and encodes it at the feed's
// reported dimensions.
func Capture(ctx context.Context, feed camera.Feed) (*StillImage, error) {
	if feed == nil {
		return nil, ErrNoFeed
	}

	width, height := feed.Dimensions()
	if width == 0 || height == 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	frame, err := feed.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	return Encode(frame, width, height)
}

// Encode rasterizes img into a width x height canvas and JPEG-encodes it.
func Encode(img image.Image, width, height int) (*StillImage, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &StillImage{
		ID:         uuid.New(),
		Data:       buf.Bytes(),
		Width:      width,
		Height:     height,
		CapturedAt: time.Now(),
	}, nil
}
