//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

func init() {
	webcamOpener = openGoCVWebcam
}

func openGoCVWebcam(ctx context.Context, index int) (Feed, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: webcam %d did not open", ErrDeviceUnavailable, index)
	}
	return &webcamFeed{vc: vc, mat: gocv.NewMat()}, nil
}

type webcamFeed struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (f *webcamFeed) Dimensions() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, 0
	}
	return int(f.vc.Get(gocv.VideoCaptureFrameWidth)), int(f.vc.Get(gocv.VideoCaptureFrameHeight))
}

func (f *webcamFeed) Frame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	if ok := f.vc.Read(&f.mat); !ok || f.mat.Empty() {
		return nil, ErrNoFrame
	}
	return f.mat.ToImage()
}

func (f *webcamFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.mat.Close()
	return f.vc.Close()
}
