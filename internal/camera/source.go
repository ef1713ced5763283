package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDevice resolves a source string into a Device:
//
//	webcam:0                          local capture device (gocv builds)
//	http(s)://host/shot.jpg           network camera snapshot endpoint
//	file:/path/to/img.jpg, /path/dir  image file or directory of images
func ParseDevice(source string) (Device, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, fmt.Errorf("empty camera source")
	case strings.HasPrefix(source, "webcam:"):
		index, err := strconv.Atoi(strings.TrimPrefix(source, "webcam:"))
		if err != nil || index < 0 {
			return nil, fmt.Errorf("invalid webcam index in %q", source)
		}
		return NewWebcamDevice(index), nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		dev, err := NewSnapshotDevice(source)
		if err != nil {
			return nil, err
		}
		return dev, nil
	default:
		return NewFileDevice(strings.TrimPrefix(source, "file:")), nil
	}
}

// ParseFacing accepts the facingMode names; anything else is rear-facing.
func ParseFacing(s string) Facing {
	if strings.EqualFold(strings.TrimSpace(s), string(FacingUser)) {
		return FacingUser
	}
	return FacingEnvironment
}
