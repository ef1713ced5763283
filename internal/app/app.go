// Package app is the scanner session: it sequences camera, capture and
// analysis actions, owns all session state and projects it into a View after
// every transition.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/anders-m-mygind/masa-app/internal/camera"
	"github.com/anders-m-mygind/masa-app/internal/capture"
	"github.com/anders-m-mygind/masa-app/internal/credential"
	"github.com/anders-m-mygind/masa-app/internal/history"
	"github.com/anders-m-mygind/masa-app/internal/verdict"
	"github.com/anders-m-mygind/masa-app/internal/vision"
)

const (
	captureTimeout  = 15 * time.Second
	analyzeTimeout  = 90 * time.Second
	verifyTimeout   = 15 * time.Second
	cameraTimeout   = 30 * time.Second
	inboxBufferSize = 16
)

// Renderer presents a View. It is called from the session worker after every
// state transition and must not call back into the App synchronously.
type Renderer interface {
	Render(v View)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(v View)

func (f RendererFunc) Render(v View) { f(v) }

// Camera is the part of camera.Controller the session drives.
type Camera interface {
	Start(ctx context.Context, c camera.Constraints) (camera.Feed, error)
	Stop() error
}

// Verifier checks a credential against the provider.
type Verifier interface {
	Verify(ctx context.Context, credential string) error
}

// Opts holds the session's collaborators. Verifier and Renderer are optional.
type Opts struct {
	Credentials *credential.Store
	Verifier    Verifier
	Camera      Camera
	Constraints camera.Constraints
	Analyzer    vision.Analyzer
	History     *history.Log
	Renderer    Renderer
}

// analysisToken identifies one analyze invocation. A completion only applies
// while its still is the current one and its sequence is the latest issued.
type analysisToken struct {
	still uuid.UUID
	seq   uint64
}

// sessionEvent is a message processed by the session worker.
type sessionEvent struct {
	Type string
	Text string
	Done chan struct{} // Closed when processing is complete (for synchronous dispatch)

	// Camera acquisition completion
	Attempt uint64
	Feed    camera.Feed

	// Analysis completion
	Token  analysisToken
	Result *vision.AnalysisResult

	Err error
}

const (
	evInit            = "init"
	evCredentialInput = "credential_input"
	evClearKey        = "clear_key"
	evTestKey         = "test_key"
	evEnableCamera    = "enable_camera"
	evStopCamera      = "stop_camera"
	evCapture         = "capture"
	evAnalyze         = "analyze"
	evCameraDone      = "camera_done"
	evVerifyDone      = "verify_done"
	evAnalysisDone    = "analysis_done"
)

// App is one scanner session.
//
// Threading model:
//   - A dedicated worker goroutine processes events sequentially and is the
//     only code that touches state; handlers need no locks.
//   - Camera acquisition, key verification and analysis run in their own
//     goroutines and report back by posting a completion event.
//   - The exported action methods block until the worker has handled the
//     action, not until any background work it started has finished.
type App struct {
	creds       *credential.Store
	verifier    Verifier
	cam         Camera
	constraints camera.Constraints
	analyzer    vision.Analyzer
	history     *history.Log
	renderer    Renderer

	inbox  chan sessionEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // worker
	tasks  sync.WaitGroup // background work

	closeOnce sync.Once

	// Worker-owned state
	state       State
	feed        camera.Feed
	camAttempt  uint64
	analysisSeq uint64
	inFlight    *analysisToken

	viewMu sync.RWMutex
	view   View
}

func New(opts Opts) *App {
	ctx, cancel := context.WithCancel(context.Background())
	h := opts.History
	if h == nil {
		h = history.NewLog()
	}
	constraints := opts.Constraints
	if constraints.Facing == "" {
		constraints = camera.RearCamera
	}
	a := &App{
		creds:       opts.Credentials,
		verifier:    opts.Verifier,
		cam:         opts.Camera,
		constraints: constraints,
		analyzer:    opts.Analyzer,
		history:     h,
		renderer:    opts.Renderer,
		inbox:       make(chan sessionEvent, inboxBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		state:       initialState(),
	}
	a.view = Project(a.state)
	return a
}

// Start launches the worker, renders the initial view and, when a usable
// credential is already stored, starts the camera.
func (a *App) Start() {
	a.wg.Add(1)
	go a.runWorker()
	a.sendSync(sessionEvent{Type: evInit})
}

// Close abandons background work, stops the worker and releases the camera.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.cancel()
		a.tasks.Wait()
		a.wg.Wait()
		// Last, so an acquisition that finished during shutdown is released too.
		if a.cam != nil {
			if err := a.cam.Stop(); err != nil {
				log.Warn().Err(err).Msg("failed to stop camera on close")
			}
		}
	})
}

// View returns the most recently rendered view.
func (a *App) View() View {
	a.viewMu.RLock()
	defer a.viewMu.RUnlock()
	return a.view
}

// History returns the session's analyses, newest first.
func (a *App) History() []history.Entry {
	return a.history.Entries()
}

// SetCredential handles key input: whitespace is stripped and an empty value
// clears the slot.
func (a *App) SetCredential(raw string) {
	a.sendSync(sessionEvent{Type: evCredentialInput, Text: raw})
}

func (a *App) ClearCredential() { a.sendSync(sessionEvent{Type: evClearKey}) }
func (a *App) TestCredential()  { a.sendSync(sessionEvent{Type: evTestKey}) }
func (a *App) EnableCamera()    { a.sendSync(sessionEvent{Type: evEnableCamera}) }
func (a *App) StopCamera()      { a.sendSync(sessionEvent{Type: evStopCamera}) }
func (a *App) Capture()         { a.sendSync(sessionEvent{Type: evCapture}) }
func (a *App) Analyze()         { a.sendSync(sessionEvent{Type: evAnalyze}) }

// Sync waits until every event queued so far has been processed.
func (a *App) Sync() {
	a.sendSync(sessionEvent{Type: ""})
}

// runWorker is the main worker loop that processes events sequentially.
func (a *App) runWorker() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			// Drain any remaining events and signal completion
			for {
				select {
				case ev := <-a.inbox:
					if ev.Done != nil {
						close(ev.Done)
					}
				default:
					return
				}
			}
		case ev := <-a.inbox:
			a.process(ev)
		}
	}
}

func (a *App) process(ev sessionEvent) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Str("event", ev.Type).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if ev.Done != nil {
			close(ev.Done)
		}
	}()

	switch ev.Type {
	case evInit:
		a.handleInit()
	case evCredentialInput:
		a.handleCredentialInput(ev.Text)
	case evClearKey:
		a.handleClearKey()
	case evTestKey:
		a.handleTestKey()
	case evEnableCamera:
		a.handleEnableCamera()
	case evStopCamera:
		a.handleStopCamera()
	case evCapture:
		a.handleCapture()
	case evAnalyze:
		a.handleAnalyze()
	case evCameraDone:
		a.handleCameraDone(ev)
	case evVerifyDone:
		a.handleVerifyDone(ev)
	case evAnalysisDone:
		a.handleAnalysisDone(ev)
	default:
		return
	}
	a.render()
}

// send queues an event for the worker. It never blocks past Close.
func (a *App) send(ev sessionEvent) {
	if a.ctx.Err() != nil {
		if ev.Done != nil {
			close(ev.Done)
		}
		return
	}
	select {
	case a.inbox <- ev:
	case <-a.ctx.Done():
		if ev.Done != nil {
			close(ev.Done)
		}
	}
}

func (a *App) sendSync(ev sessionEvent) {
	ev.Done = make(chan struct{})
	a.send(ev)
	<-ev.Done
}

// goTask runs fn in the background; its completion event is posted only while
// the session is open.
func (a *App) goTask(fn func(ctx context.Context) sessionEvent) {
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		if a.ctx.Err() != nil {
			return
		}
		ev := fn(a.ctx)
		a.send(ev)
	}()
}

func (a *App) render() {
	a.state.History = a.history.Entries()
	v := Project(a.state)

	a.viewMu.Lock()
	a.view = v
	a.viewMu.Unlock()

	if a.renderer != nil {
		a.renderer.Render(v)
	}
}

func (a *App) setStatus(format string, args ...any) {
	if len(args) > 0 {
		a.state.Status = fmt.Sprintf(format, args...)
		return
	}
	a.state.Status = format
}

// --- Credential ---

func (a *App) handleInit() {
	a.refreshKeyState()
	if a.state.KeyUsable {
		a.handleEnableCamera()
	}
}

// refreshKeyState recomputes key flags and the matching instruction.
func (a *App) refreshKeyState() {
	a.state.KeyPresent = a.creds.Present()
	a.state.KeyUsable = a.creds.Usable()

	switch {
	case !a.state.KeyUsable:
		a.setStatus(MsgAddKey)
	case a.state.Camera != camera.StateActive && a.state.Camera != camera.StateRequesting:
		a.setStatus(MsgKeyStoredEnable)
	}
}

func (a *App) handleCredentialInput(raw string) {
	if _, err := a.creds.Set(raw); err != nil {
		log.Error().Err(err).Msg("failed to save credential")
		a.refreshKeyState()
		a.setStatus(MsgKeySaveFailed)
		return
	}
	a.refreshKeyState()
}

func (a *App) handleClearKey() {
	if err := a.creds.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear credential")
	}
	a.setStatus(MsgKeyCleared)
	a.refreshKeyState()
}

func (a *App) handleTestKey() {
	key := a.creds.Get()
	shape := a.creds.Shape()
	if !shape.Usable(key) {
		a.setStatus(MsgKeyTestInvalid, shape.Hint())
		return
	}
	if a.verifier == nil {
		a.setStatus(MsgKeyTestFailed)
		log.Error().Msg("no credential verifier configured")
		return
	}

	a.setStatus(MsgKeyTesting)
	a.goTask(func(ctx context.Context) sessionEvent {
		ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
		defer cancel()
		return sessionEvent{Type: evVerifyDone, Err: a.verifier.Verify(ctx, key)}
	})
}

func (a *App) handleVerifyDone(ev sessionEvent) {
	if ev.Err != nil {
		log.Error().Err(ev.Err).Msg("api key test failed")
		a.setStatus(MsgKeyTestFailed)
		return
	}
	a.refreshKeyState()
	a.setStatus(MsgKeyVerified)
}

// --- Camera ---

func (a *App) handleEnableCamera() {
	if !a.state.KeyUsable {
		a.setStatus(MsgAddKey)
		return
	}
	switch a.state.Camera {
	case camera.StateActive, camera.StateRequesting:
		return
	}

	a.camAttempt++
	attempt := a.camAttempt
	a.state.Camera = camera.StateRequesting
	a.setStatus(MsgCameraRequesting)

	a.goTask(func(ctx context.Context) sessionEvent {
		if a.cam == nil {
			return sessionEvent{Type: evCameraDone, Attempt: attempt, Err: camera.ErrDeviceUnavailable}
		}
		ctx, cancel := context.WithTimeout(ctx, cameraTimeout)
		defer cancel()
		feed, err := a.cam.Start(ctx, a.constraints)
		return sessionEvent{Type: evCameraDone, Attempt: attempt, Feed: feed, Err: err}
	})
}

func (a *App) handleCameraDone(ev sessionEvent) {
	if ev.Attempt != a.camAttempt {
		// Stopped or restarted while acquiring; the controller released it.
		log.Debug().Uint64("attempt", ev.Attempt).Msg("ignoring stale camera result")
		return
	}

	if ev.Err != nil {
		a.state.Camera = camera.StateDenied
		a.feed = nil
		switch camera.Classify(ev.Err) {
		case camera.ReasonInsecureContext:
			a.setStatus(MsgCameraInsecure)
		case camera.ReasonPermissionDenied:
			a.setStatus(MsgCameraDenied)
		default:
			if errors.Is(ev.Err, camera.ErrAcquisitionPending) || errors.Is(ev.Err, camera.ErrAcquisitionAborted) {
				a.state.Camera = camera.StateInactive
				a.setStatus(MsgCameraStopped)
				return
			}
			a.setStatus(MsgCameraUnavailable)
		}
		log.Error().Err(ev.Err).Msg("camera acquisition failed")
		return
	}

	a.state.Camera = camera.StateActive
	a.state.Snapshot = false
	a.feed = ev.Feed
	a.setStatus(MsgCameraLive)
}

func (a *App) handleStopCamera() {
	a.camAttempt++
	if a.cam != nil {
		if err := a.cam.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop camera")
		}
	}
	a.state.Camera = camera.StateInactive
	a.feed = nil
	a.setStatus(MsgCameraStopped)
}

// --- Capture and analysis ---

func (a *App) handleCapture() {
	if !a.state.KeyUsable {
		a.setStatus(MsgAddKey)
		return
	}
	if a.state.Camera != camera.StateActive || a.feed == nil {
		a.setStatus(MsgCaptureNeedsCamera)
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, captureTimeout)
	defer cancel()
	still, err := capture.Capture(ctx, a.feed)
	if err != nil {
		log.Error().Err(err).Msg("capture failed")
		a.setStatus(MsgCaptureFailed)
		return
	}

	a.state.Still = still
	a.state.Snapshot = true
	a.state.Analyzing = false
	a.inFlight = nil
	a.state.Result = ResultPanel{State: "idle", Label: PanelWaitingToAnalyze, Pill: Placeholder}
	a.state.Metadata = MetadataPanel{
		State:      "unknown",
		Title:      PanelWaitingForAnalysis,
		Brand:      Placeholder,
		Country:    Placeholder,
		Confidence: Placeholder,
		Reasoning:  Placeholder,
	}
	a.setStatus(MsgCaptured)

	log.Info().
		Str("still", still.ID.String()).
		Int("width", still.Width).
		Int("height", still.Height).
		Int("bytes", len(still.Data)).
		Msg("captured still")
}

func (a *App) handleAnalyze() {
	still := a.state.Still
	if still == nil {
		a.setStatus(MsgCaptureFirst)
		return
	}

	key := a.creds.Get()
	shape := a.creds.Shape()
	if key == "" {
		a.setStatus(MsgEnterKey)
		return
	}
	if !shape.Usable(key) {
		a.setStatus(MsgKeyLooksWrong, shape.Hint())
		return
	}
	if a.inFlight != nil && a.inFlight.still == still.ID {
		a.setStatus(MsgAnalysisInFlight)
		return
	}

	a.analysisSeq++
	token := analysisToken{still: still.ID, seq: a.analysisSeq}
	a.inFlight = &token
	a.state.Analyzing = true

	a.setStatus(MsgAnalyzing)
	a.state.Result = ResultPanel{State: "idle", Label: PanelAnalyzing, Pill: PanelWorking}
	a.state.Metadata = MetadataPanel{
		State:      "unknown",
		Title:      PanelAnalyzing,
		Brand:      Placeholder,
		Country:    Placeholder,
		Confidence: Placeholder,
		Reasoning:  PanelReasoningWorking,
	}

	a.goTask(func(ctx context.Context) sessionEvent {
		ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
		defer cancel()
		result, err := a.analyzer.AnalyzeImage(ctx, still, key)
		return sessionEvent{Type: evAnalysisDone, Token: token, Result: result, Err: err}
	})
}

func (a *App) handleAnalysisDone(ev sessionEvent) {
	if a.inFlight == nil || *a.inFlight != ev.Token || a.state.Still == nil || a.state.Still.ID != ev.Token.still {
		log.Info().
			Str("still", ev.Token.still.String()).
			Uint64("seq", ev.Token.seq).
			Msg("discarding analysis for a replaced still")
		return
	}
	a.inFlight = nil
	a.state.Analyzing = false

	if ev.Err != nil {
		a.applyFailure(ev.Err)
		return
	}

	result := ev.Result
	if result == nil {
		result = vision.ParseResult("")
	}
	if result.Outcome == vision.OutcomeDegraded {
		log.Warn().Str("content", result.Content).Msg("model reply was not a JSON object")
	}

	v := verdict.Interpret(result)
	a.state.Result = ResultPanel{State: v.ResultState, Label: v.Label, Pill: v.Pill}
	a.state.Metadata = MetadataPanel{
		State:      v.State,
		Title:      v.Title,
		Brand:      result.Brand,
		Country:    result.Country,
		Confidence: string(result.Confidence),
		Reasoning:  result.Reasoning,
	}
	a.history.Add(history.Entry{
		Image:      a.state.Still,
		Title:      v.Label,
		Brand:      result.Brand,
		Country:    result.Country,
		Confidence: string(result.Confidence),
	})
	a.setStatus(MsgAnalysisComplete)

	log.Info().
		Str("still", ev.Token.still.String()).
		Str("verdict", v.Kind.String()).
		Str("brand", result.Brand).
		Str("country", result.Country).
		Msg("analysis complete")
}

func (a *App) applyFailure(err error) {
	var transportErr *vision.TransportError
	if errors.As(err, &transportErr) {
		log.Error().Err(err).Int("status", transportErr.StatusCode).Msg("analysis request failed")
	} else {
		log.Error().Err(err).Msg("analysis failed")
	}

	a.setStatus(MsgAnalysisFailed)
	a.state.Metadata = MetadataPanel{
		State:      "unknown",
		Title:      PanelRequestFailed,
		Brand:      Placeholder,
		Country:    Placeholder,
		Confidence: Placeholder,
		Reasoning:  PanelRequestFailedAdvice,
	}
	a.state.Result = ResultPanel{State: "idle", Label: PanelRequestFailed, Pill: PanelRequestFailedPill}
}
