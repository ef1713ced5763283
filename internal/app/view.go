package app

import (
	"github.com/anders-m-mygind/masa-app/internal/camera"
	"github.com/anders-m-mygind/masa-app/internal/capture"
	"github.com/anders-m-mygind/masa-app/internal/history"
)

// Preview is what the capture area shows.
type Preview int

const (
	PreviewNone Preview = iota
	PreviewLive
	PreviewSnapshot
)

func (p Preview) String() string {
	switch p {
	case PreviewLive:
		return "live"
	case PreviewSnapshot:
		return "snapshot"
	default:
		return "none"
	}
}

// ResultPanel is the verdict pill and label.
type ResultPanel struct {
	State string
	Label string
	Pill  string
}

// MetadataPanel is the model output panel.
type MetadataPanel struct {
	State      string
	Title      string
	Brand      string
	Country    string
	Confidence string
	Reasoning  string
}

// Controls says which actions the user can take.
type Controls struct {
	EnableCamera bool
	// EnableCameraVisible is the manual enable affordance shown when a usable
	// key is stored but no camera is live, including after a denial.
	EnableCameraVisible bool
	Capture             bool
	Analyze             bool
	StopCamera          bool
}

// State is everything the session owns. Only the worker goroutine mutates it.
type State struct {
	Status     string
	KeyPresent bool
	KeyUsable  bool
	Camera     camera.State
	Still      *capture.StillImage
	// Snapshot is true once a still has been captured on the current camera
	// session, switching the preview away from the live feed.
	Snapshot  bool
	Analyzing bool
	Result    ResultPanel
	Metadata  MetadataPanel
	History   []history.Entry
}

// View is the render-ready projection of State.
type View struct {
	Status    string
	KeyStatus string
	Camera    camera.State
	Preview   Preview
	Still     *capture.StillImage
	Analyzing bool
	Result    ResultPanel
	Metadata  MetadataPanel
	Controls  Controls
	History   []history.Entry
}

func initialState() State {
	return State{
		Camera: camera.StateInactive,
		Result: ResultPanel{State: "idle", Label: PanelWaitingForCapture, Pill: Placeholder},
		Metadata: MetadataPanel{
			State: "unknown",
			Title: PanelWaitingForCapture,
		},
	}
}

// Project derives the view from state. It has no side effects.
func Project(s State) View {
	v := View{
		Status:    s.Status,
		KeyStatus: MsgKeyStatusNotSet,
		Camera:    s.Camera,
		Still:     s.Still,
		Analyzing: s.Analyzing,
		Result:    s.Result,
		Metadata:  s.Metadata,
		History:   s.History,
	}
	if s.KeyPresent {
		v.KeyStatus = MsgKeyStatusStored
	}

	switch {
	case s.Snapshot && s.Still != nil:
		v.Preview = PreviewSnapshot
	case s.Camera == camera.StateActive:
		v.Preview = PreviewLive
	}

	live := s.Camera == camera.StateActive
	v.Controls = Controls{
		EnableCamera:        s.KeyUsable && s.Camera != camera.StateRequesting,
		EnableCameraVisible: s.KeyUsable && !live,
		Capture:             s.KeyUsable && live,
		Analyze:             s.KeyUsable && live && s.Still != nil && !s.Analyzing,
		StopCamera:          live || s.Camera == camera.StateRequesting,
	}

	v.Result.Label = orPlaceholder(v.Result.Label)
	v.Result.Pill = orPlaceholder(v.Result.Pill)
	v.Metadata.Title = orPlaceholder(v.Metadata.Title)
	v.Metadata.Brand = orPlaceholder(v.Metadata.Brand)
	v.Metadata.Country = orPlaceholder(v.Metadata.Country)
	v.Metadata.Confidence = orPlaceholder(v.Metadata.Confidence)
	v.Metadata.Reasoning = orPlaceholder(v.Metadata.Reasoning)
	return v
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
