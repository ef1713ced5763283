package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeFeed is an in-memory Feed with a solid-color frame.
type fakeFeed struct {
	mu     sync.Mutex
	w, h   int
	closed bool
}

func (f *fakeFeed) Dimensions() (int, int) { return f.w, f.h }

func (f *fakeFeed) Frame(ctx context.Context) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	return img, nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDevice struct {
	name   string
	err    error
	secure bool
	opens  int
	feed   *fakeFeed
	block  chan struct{} // when set, Open waits for it to close
}

func (d *fakeDevice) Name() string        { return d.name }
func (d *fakeDevice) SecureContext() bool { return d.secure }

func (d *fakeDevice) Open(ctx context.Context, c Constraints) (Feed, error) {
	d.opens++
	if d.block != nil {
		<-d.block
	}
	if d.err != nil {
		return nil, d.err
	}
	d.feed = &fakeFeed{w: 640, h: 480}
	return d.feed, nil
}

func newFakeDevice(name string) *fakeDevice {
	return &fakeDevice{name: name, secure: true}
}

func TestController_StartStop(t *testing.T) {
	dev := newFakeDevice("rear")
	c := NewController([]Source{{Device: dev, Facing: FacingEnvironment}}, ControllerOpts{})
	assert.Equal(t, StateInactive, c.State())
	assert.Nil(t, c.Feed())

	feed, err := c.Start(context.Background(), RearCamera)
	require.NoError(t, err)
	assert.Equal(t, StateActive, c.State())
	assert.Same(t, feed, c.Feed())

	require.NoError(t, c.Stop())
	assert.Equal(t, StateInactive, c.State())
	assert.Nil(t, c.Feed())
	assert.True(t, dev.feed.closed)
}

func TestController_StartWhenActiveIsNoop(t *testing.T) {
	dev := newFakeDevice("rear")
	c := NewController([]Source{{Device: dev, Facing: FacingEnvironment}}, ControllerOpts{})

	first, err := c.Start(context.Background(), RearCamera)
	require.NoError(t, err)
	second, err := c.Start(context.Background(), RearCamera)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dev.opens)
}

func TestController_PrefersRequestedFacing(t *testing.T) {
	front := newFakeDevice("front")
	rear := newFakeDevice("rear")
	c := NewController([]Source{
		{Device: front, Facing: FacingUser},
		{Device: rear, Facing: FacingEnvironment},
	}, ControllerOpts{})

	_, err := c.Start(context.Background(), RearCamera)
	require.NoError(t, err)
	assert.Equal(t, 0, front.opens)
	assert.Equal(t, 1, rear.opens)
}

func TestController_FallsBackToFirstSource(t *testing.T) {
	front := newFakeDevice("front")
	c := NewController([]Source{{Device: front, Facing: FacingUser}}, ControllerOpts{})

	_, err := c.Start(context.Background(), RearCamera)
	require.NoError(t, err)
	assert.Equal(t, 1, front.opens)
}

func TestController_FailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		dev    *fakeDevice
		reason FailureReason
	}{
		{
			name:   "insecure context",
			dev:    &fakeDevice{name: "ipcam", secure: false},
			reason: ReasonInsecureContext,
		},
		{
			name:   "permission denied",
			dev:    &fakeDevice{name: "rear", secure: true, err: ErrPermissionDenied},
			reason: ReasonPermissionDenied,
		},
		{
			name:   "os permission error",
			dev:    &fakeDevice{name: "rear", secure: true, err: os.ErrPermission},
			reason: ReasonPermissionDenied,
		},
		{
			name:   "device error",
			dev:    &fakeDevice{name: "rear", secure: true, err: errors.New("no such device")},
			reason: ReasonDeviceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController([]Source{{Device: tt.dev, Facing: FacingEnvironment}}, ControllerOpts{})
			_, err := c.Start(context.Background(), RearCamera)

			var acqErr *AcquisitionError
			require.True(t, errors.As(err, &acqErr))
			assert.Equal(t, tt.reason, acqErr.Reason)
			assert.Equal(t, StateDenied, c.State())
			assert.Equal(t, tt.reason, c.LastError().Reason)
		})
	}
}

func TestController_InsecureNeverOpens(t *testing.T) {
	dev := &fakeDevice{name: "ipcam", secure: false}
	c := NewController([]Source{{Device: dev}}, ControllerOpts{})

	_, err := c.Start(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrInsecureContext)
	assert.Equal(t, 0, dev.opens)
}

func TestController_RetryAfterDenied(t *testing.T) {
	dev := &fakeDevice{name: "rear", secure: true, err: ErrPermissionDenied}
	c := NewController([]Source{{Device: dev}}, ControllerOpts{})

	_, err := c.Start(context.Background(), RearCamera)
	require.Error(t, err)
	assert.Equal(t, StateDenied, c.State())

	dev.err = nil
	_, err = c.Start(context.Background(), RearCamera)
	require.NoError(t, err)
	assert.Equal(t, StateActive, c.State())
	assert.Nil(t, c.LastError())
}

func TestController_NoSources(t *testing.T) {
	c := NewController(nil, ControllerOpts{})
	_, err := c.Start(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, StateDenied, c.State())
}

func TestController_StopDuringRequesting(t *testing.T) {
	dev := newFakeDevice("rear")
	dev.block = make(chan struct{})
	c := NewController([]Source{{Device: dev}}, ControllerOpts{})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Start(context.Background(), RearCamera)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return c.State() == StateRequesting }, timeout, tick)

	_, err := c.Start(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrAcquisitionPending)

	require.NoError(t, c.Stop())
	close(dev.block)

	assert.ErrorIs(t, <-errCh, ErrAcquisitionAborted)
	assert.Equal(t, StateInactive, c.State())
	assert.True(t, dev.feed.closed)
}

func TestController_LockPreventsSecondOwner(t *testing.T) {
	lockDir := t.TempDir()
	a := NewController([]Source{{Device: newFakeDevice("rear")}}, ControllerOpts{LockDir: lockDir})
	b := NewController([]Source{{Device: newFakeDevice("rear")}}, ControllerOpts{LockDir: lockDir})

	_, err := a.Start(context.Background(), RearCamera)
	require.NoError(t, err)

	_, err = b.Start(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceBusy)
	assert.Equal(t, ReasonDeviceError, Classify(err))

	require.NoError(t, a.Stop())
	_, err = b.Start(context.Background(), RearCamera)
	assert.NoError(t, err)
	b.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewController([]Source{{Device: newFakeDevice("rear")}}, ControllerOpts{})
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
	assert.Equal(t, StateInactive, c.State())
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestFileDevice_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "product.jpg")
	writeJPEG(t, path, 64, 48)

	feed, err := NewFileDevice(path).Open(context.Background(), RearCamera)
	require.NoError(t, err)

	w, h := feed.Dimensions()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	img, err := feed.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	require.NoError(t, feed.Close())
	_, err = feed.Frame(context.Background())
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestFileDevice_DirectoryCycles(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "a.jpg"), 10, 10)
	writeJPEG(t, filepath.Join(dir, "b.jpg"), 20, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	feed, err := NewFileDevice(dir).Open(context.Background(), RearCamera)
	require.NoError(t, err)

	var widths []int
	for i := 0; i < 3; i++ {
		w, _ := feed.Dimensions()
		img, err := feed.Frame(context.Background())
		require.NoError(t, err)
		assert.Equal(t, w, img.Bounds().Dx())
		widths = append(widths, w)
	}
	assert.Equal(t, []int{10, 20, 10}, widths)
}

func TestFileDevice_Missing(t *testing.T) {
	_, err := NewFileDevice(filepath.Join(t.TempDir(), "nope.jpg")).Open(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, ReasonDeviceError, Classify(err))
}

func TestFileDevice_EmptyDirectory(t *testing.T) {
	_, err := NewFileDevice(t.TempDir()).Open(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestSnapshotDevice_Frames(t *testing.T) {
	frame := pngBytes(t, 32, 24)
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(frame)
	}))
	defer ts.Close()

	dev, err := NewSnapshotDevice(ts.URL + "/shot.png")
	require.NoError(t, err)
	assert.True(t, dev.SecureContext(), "loopback is a secure context")

	feed, err := dev.Open(context.Background(), RearCamera)
	require.NoError(t, err)
	w, h := feed.Dimensions()
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)

	img, err := feed.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, int32(2), hits.Load())
}

func TestSnapshotDevice_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	dev, err := NewSnapshotDevice(ts.URL)
	require.NoError(t, err)
	_, err = dev.Open(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, ReasonPermissionDenied, Classify(err))
}

func TestSnapshotDevice_NotAnImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	dev, err := NewSnapshotDevice(ts.URL)
	require.NoError(t, err)
	_, err = dev.Open(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestSnapshotDevice_SizeLimit(t *testing.T) {
	frame := pngBytes(t, 32, 24)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(frame)
	}))
	defer ts.Close()

	dev, err := NewSnapshotDevice(ts.URL)
	require.NoError(t, err)
	dev.WithMaxSize(10)
	_, err = dev.Open(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestSnapshotDevice_SizeLimitWithoutContentLength(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		flusher := w.(http.Flusher)
		chunk := bytes.Repeat([]byte{0xff}, 4096)
		// Chunked transfer: no Content-Length, and far more than the limit.
		for i := 0; i < 2048; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer ts.Close()

	dev, err := NewSnapshotDevice(ts.URL)
	require.NoError(t, err)
	dev.WithMaxSize(64 * 1024)

	_, err = dev.Open(context.Background(), RearCamera)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorContains(t, err, "exceeds limit of 65536 bytes")
}

func TestSnapshotDevice_SecureContext(t *testing.T) {
	tests := []struct {
		url    string
		secure bool
	}{
		{"https://192.168.1.20:8080/shot.jpg", true},
		{"http://192.168.1.20:8080/shot.jpg", false},
		{"http://localhost:8080/shot.jpg", true},
		{"http://127.0.0.1/shot.jpg", true},
		{"http://[::1]/shot.jpg", true},
	}
	for _, tt := range tests {
		dev, err := NewSnapshotDevice(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.secure, dev.SecureContext(), tt.url)
	}
}

func TestParseDevice(t *testing.T) {
	dev, err := ParseDevice("webcam:1")
	require.NoError(t, err)
	assert.Equal(t, "webcam:1", dev.Name())

	dev, err = ParseDevice("https://cam.local/shot.jpg")
	require.NoError(t, err)
	assert.IsType(t, &SnapshotDevice{}, dev)

	dev, err = ParseDevice("file:/tmp/product.jpg")
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/product.jpg", dev.Name())

	dev, err = ParseDevice("/tmp/frames")
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/frames", dev.Name())

	_, err = ParseDevice("webcam:abc")
	assert.Error(t, err)
	_, err = ParseDevice("")
	assert.Error(t, err)
}

func TestParseFacing(t *testing.T) {
	assert.Equal(t, FacingUser, ParseFacing("User"))
	assert.Equal(t, FacingEnvironment, ParseFacing("environment"))
	assert.Equal(t, FacingEnvironment, ParseFacing(""))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonNone, Classify(nil))
	assert.Equal(t, "insecure-context", ReasonInsecureContext.String())
	assert.Equal(t, "Requesting", StateRequesting.String())
}
