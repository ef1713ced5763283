package camera

import (
	"context"
	"fmt"
	"strconv"
)

// webcamOpener is installed by webcam_gocv.go when built with -tags gocv.
var webcamOpener func(ctx context.Context, index int) (Feed, error)

// WebcamDevice is a local capture device addressed by index (0 = first).
type WebcamDevice struct {
	index int
}

func NewWebcamDevice(index int) *WebcamDevice {
	return &WebcamDevice{index: index}
}

func (d *WebcamDevice) Name() string {
	return "webcam:" + strconv.Itoa(d.index)
}

func (d *WebcamDevice) Open(ctx context.Context, c Constraints) (Feed, error) {
	if webcamOpener == nil {
		return nil, fmt.Errorf("%w: webcam support not compiled in (build with -tags gocv)", ErrDeviceUnavailable)
	}
	return webcamOpener(ctx, d.index)
}
