package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	w, h  int
	frame image.Image
	err   error
}

func (f *stubFeed) Dimensions() (int, int) { return f.w, f.h }

func (f *stubFeed) Frame(ctx context.Context) (image.Image, error) {
	return f.frame, f.err
}

func (f *stubFeed) Close() error { return nil }

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCapture_UsesFeedDimensions(t *testing.T) {
	feed := &stubFeed{w: 320, h: 240, frame: solid(640, 480, color.White)}

	still, err := Capture(context.Background(), feed)
	require.NoError(t, err)
	assert.Equal(t, 320, still.Width)
	assert.Equal(t, 240, still.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(still.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 240), decoded.Bounds())
}

func TestCapture_ZeroDimensionsFallBack(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"both zero", 0, 0},
		{"zero width", 0, 480},
		{"zero height", 640, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &stubFeed{w: tt.w, h: tt.h, frame: solid(16, 9, color.Black)}
			still, err := Capture(context.Background(), feed)
			require.NoError(t, err)
			assert.Equal(t, DefaultWidth, still.Width)
			assert.Equal(t, DefaultHeight, still.Height)
		})
	}
}

func TestCapture_NilFeed(t *testing.T) {
	_, err := Capture(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFeed)
}

func TestCapture_FrameError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Capture(context.Background(), &stubFeed{w: 10, h: 10, err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestCapture_EachStillIsDistinct(t *testing.T) {
	feed := &stubFeed{w: 8, h: 8, frame: solid(8, 8, color.White)}
	a, err := Capture(context.Background(), feed)
	require.NoError(t, err)
	b, err := Capture(context.Background(), feed)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CapturedAt.IsZero())
}

func TestStillImage_DataURI(t *testing.T) {
	still := &StillImage{Data: []byte{0xff, 0xd8, 0xff}}
	uri := still.DataURI()
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	assert.Equal(t, "data:image/jpeg;base64,/9j/", uri)
}
