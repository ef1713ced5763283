package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// Source is a device together with the way it faces.
type Source struct {
	Device Device
	Facing Facing
}

// Controller manages the single capture session.
//
// Start and Stop may be called from any goroutine; the Requesting state is
// visible to State() callers while a device is being opened.
type Controller struct {
	mu      sync.Mutex
	sources []Source
	lockDir string

	state   State
	attempt uint64
	source  *Source
	feed    Feed
	lock    *flock.Flock
	lastErr *AcquisitionError
}

// ControllerOpts configures a Controller.
type ControllerOpts struct {
	// LockDir holds one lock file per device so two processes can't hold the
	// same camera. Empty disables locking.
	LockDir string
}

func NewController(sources []Source, opts ControllerOpts) *Controller {
	return &Controller{
		sources: sources,
		lockDir: opts.LockDir,
		state:   StateInactive,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Feed returns the live feed, or nil unless the session is Active.
func (c *Controller) Feed() Feed {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return nil
	}
	return c.feed
}

// LastError returns the failure that put the session into Denied, if any.
func (c *Controller) LastError() *AcquisitionError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start acquires a device matching the constraints. It is a no-op returning
// the current feed when the session is already Active. Failures move the
// session to Denied and are returned as *AcquisitionError.
func (c *Controller) Start(ctx context.Context, constraints Constraints) (Feed, error) {
	c.mu.Lock()
	switch c.state {
	case StateActive:
		feed := c.feed
		c.mu.Unlock()
		return feed, nil
	case StateRequesting:
		c.mu.Unlock()
		return nil, ErrAcquisitionPending
	}

	src := c.pick(constraints.Facing)
	if src == nil {
		err := c.denyLocked("none", ErrDeviceUnavailable)
		c.mu.Unlock()
		return nil, err
	}
	name := src.Device.Name()

	if sc, ok := src.Device.(SecureContexter); ok && !sc.SecureContext() {
		err := c.denyLocked(name, ErrInsecureContext)
		c.mu.Unlock()
		return nil, err
	}

	c.state = StateRequesting
	c.lastErr = nil
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	log.Info().Str("device", name).Str("facing", string(src.Facing)).Msg("requesting camera")

	lock, err := c.acquireLock(name)
	if err != nil {
		return nil, c.fail(attempt, name, err)
	}

	feed, err := src.Device.Open(ctx, constraints)
	if err != nil {
		releaseLock(lock)
		return nil, c.fail(attempt, name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != attempt || c.state != StateRequesting {
		// Stop ran while the device was opening.
		feed.Close()
		releaseLock(lock)
		return nil, ErrAcquisitionAborted
	}
	c.state = StateActive
	c.source = src
	c.feed = feed
	c.lock = lock

	w, h := feed.Dimensions()
	log.Info().Str("device", name).Int("width", w).Int("height", h).Msg("camera live")
	return feed, nil
}

// Stop releases all device tracks and returns to Inactive unconditionally.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempt++
	prev := c.state
	c.state = StateInactive
	c.lastErr = nil

	var err error
	if c.feed != nil {
		err = c.feed.Close()
		c.feed = nil
	}
	releaseLock(c.lock)
	c.lock = nil

	if prev == StateActive && c.source != nil {
		log.Info().Str("device", c.source.Device.Name()).Msg("camera stopped")
	}
	c.source = nil
	return err
}

func (c *Controller) pick(facing Facing) *Source {
	if len(c.sources) == 0 {
		return nil
	}
	for i := range c.sources {
		if c.sources[i].Facing == facing {
			return &c.sources[i]
		}
	}
	return &c.sources[0]
}

func (c *Controller) fail(attempt uint64, name string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != attempt {
		return ErrAcquisitionAborted
	}
	return c.denyLocked(name, err)
}

func (c *Controller) denyLocked(name string, err error) error {
	acqErr := &AcquisitionError{Device: name, Reason: Classify(err), Err: err}
	c.state = StateDenied
	c.lastErr = acqErr
	log.Warn().Err(err).Str("device", name).Str("reason", acqErr.Reason.String()).Msg("camera acquisition failed")
	return acqErr
}

func (c *Controller) acquireLock(name string) (*flock.Flock, error) {
	if c.lockDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(c.lockDir, 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(c.lockDir, lockFileName(name)))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire camera lock: %w", err)
	}
	if !ok {
		return nil, ErrDeviceBusy
	}
	return lock, nil
}

func releaseLock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Warn().Err(err).Str("path", lock.Path()).Msg("failed to release camera lock")
	}
}

func lockFileName(deviceName string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, deviceName)
	return "camera-" + safe + ".lock"
}
