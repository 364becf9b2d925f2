// Package app wires the camera, shot detector, shot gate and store into the
// running dryfire pipeline.
package app

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/dryfire/internal/capture"
	"github.com/ayusman/dryfire/internal/detector"
	"github.com/ayusman/dryfire/internal/shot"
	"github.com/ayusman/dryfire/internal/store"
)

// Config holds the application's collaborators and start-up settings.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	// Kind names the detector implementation in diagnostics.
	Kind detector.Kind
	Gate *shot.Gate
	// Store persists sector, detection and ignore-color changes. Optional.
	Store *store.Store

	// Detecting is the initial detection state when none is persisted.
	Detecting bool
	// DisabledSectors lists row-major sector indexes to disable when no
	// sector mask is persisted.
	DisabledSectors []int
	// ScaleForProjector maps detections into arena coordinates at the gate.
	ScaleForProjector bool
}

// Status is a snapshot of the pipeline for diagnostics.
type Status struct {
	Detector            string `json:"detector"`
	Running             bool   `json:"running"`
	Detecting           bool   `json:"detecting"`
	IgnoreColor         string `json:"ignore_color"`
	FPS                 int    `json:"fps"`
	FrameIndex          int64  `json:"frame_index"`
	FramesProcessed     int64  `json:"frames_processed"`
	ShotsAccepted       int64  `json:"shots_accepted"`
	Candidates          int    `json:"candidates"`
	BrightPixels        int    `json:"bright_pixels"`
	ExcessiveMotion     bool   `json:"excessive_motion"`
	ExcessiveBrightness bool   `json:"excessive_brightness"`
}

// lastFrame holds what the debug endpoints need from the latest frame.
type lastFrame struct {
	width, height int
	result        detector.Result
	preview       gocv.Mat
	hasPreview    bool
}

// App is the running shot detection application.
type App struct {
	config    Config
	camera    capture.Camera
	detector  detector.Detector
	gate      *shot.Gate
	detecting bool
	mu        sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}

	framesProcessed atomic.Int64
	shotsAccepted   atomic.Int64

	last   lastFrame
	lastMu sync.Mutex
}

// New creates an App and restores persisted settings from the store.
func New(config Config) *App {
	gate := config.Gate
	if gate == nil {
		gate = shot.NewGate(shot.GateConfig{})
	}

	a := &App{
		config:    config,
		camera:    config.Camera,
		detector:  config.Detector,
		gate:      gate,
		detecting: config.Detecting,
	}

	a.applyDisabledSectors(config.DisabledSectors)
	a.restoreSettings()

	return a
}

func (a *App) applyDisabledSectors(indexes []int) {
	scanner := a.detector.Scanner()
	_, cols := scanner.Dimensions()
	for _, idx := range indexes {
		if err := scanner.SetSectorEnabled(idx/cols, idx%cols, false); err != nil {
			log.Warn().Err(err).Int("sector", idx).Msg("Ignoring invalid disabled sector")
		}
	}
}

// restoreSettings loads persisted values, which take precedence over the
// start-up configuration.
func (a *App) restoreSettings() {
	if a.config.Store == nil {
		return
	}
	settings := a.config.Store.Settings()

	var sectors [][]bool
	switch err := settings.GetJSON(store.KeySectors, &sectors); {
	case err == nil:
		if err := a.detector.Scanner().SetSectors(sectors); err != nil {
			log.Warn().Err(err).Msg("Discarding persisted sector mask")
		}
	case !errors.Is(err, store.ErrNotFound):
		log.Warn().Err(err).Msg("Failed to load sector mask")
	}

	var detecting bool
	switch err := settings.GetJSON(store.KeyDetecting, &detecting); {
	case err == nil:
		a.detecting = detecting
	case !errors.Is(err, store.ErrNotFound):
		log.Warn().Err(err).Msg("Failed to load detection state")
	}

	raw, err := settings.Get(store.KeyIgnoreColor)
	switch {
	case err == nil:
		c, err := shot.ParseColor(raw)
		if err != nil {
			log.Warn().Err(err).Msg("Discarding persisted ignore color")
			break
		}
		a.gate.SetIgnoreColor(c)
	case !errors.Is(err, store.ErrNotFound):
		log.Warn().Err(err).Msg("Failed to load ignore color")
	}
}

// Start opens the camera and begins the detection pipeline. Starting a
// running App is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.detector.SetFPS(a.camera.FPS())

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		a.runPipeline(ctx)
	}(a.done)

	log.Info().
		Str("detector", string(a.config.Kind)).
		Int("fps", a.camera.FPS()).
		Bool("detecting", a.detecting).
		Msg("Detection pipeline started")
	return nil
}

// Stop halts the pipeline, waits for the current frame to finish and
// releases the camera and detector. The App cannot be restarted afterwards.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := a.camera.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing camera")
	}

	if err := a.detector.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing detector")
	}

	a.lastMu.Lock()
	if a.last.hasPreview {
		a.last.preview.Close()
		a.last.hasPreview = false
	}
	a.lastMu.Unlock()

	log.Info().Msg("Detection pipeline stopped")
}

// Done is closed when the pipeline goroutine exits, either through Stop or
// because the camera ran out of frames. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Running reports whether the pipeline goroutine is active.
func (a *App) Running() bool {
	done := a.Done()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// SetDetecting turns shot reporting on or off. The background model keeps
// learning while detection is off.
func (a *App) SetDetecting(detecting bool) {
	a.mu.Lock()
	changed := a.detecting != detecting
	a.detecting = detecting
	a.mu.Unlock()

	if !changed {
		return
	}
	log.Info().Bool("detecting", detecting).Msg("Detection state changed")
	a.persistJSON(store.KeyDetecting, detecting)
}

// Detecting reports whether shots are being reported.
func (a *App) Detecting() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detecting
}

// IgnoreColor returns the laser color the gate drops.
func (a *App) IgnoreColor() shot.Color {
	return a.gate.IgnoreColor()
}

// SetIgnoreColor changes the laser color the gate drops and persists it.
func (a *App) SetIgnoreColor(c shot.Color) {
	a.gate.SetIgnoreColor(c)
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().Set(store.KeyIgnoreColor, c.String()); err != nil {
		log.Error().Err(err).Msg("Failed to persist ignore color")
	}
}

// Sectors returns the sector mask, row-major.
func (a *App) Sectors() [][]bool {
	return a.detector.Scanner().Sectors()
}

// SetSectors replaces the sector mask and persists it.
func (a *App) SetSectors(sectors [][]bool) error {
	if err := a.detector.Scanner().SetSectors(sectors); err != nil {
		return err
	}
	log.Info().Interface("sectors", sectors).Msg("Sector mask updated")
	a.persistJSON(store.KeySectors, sectors)
	return nil
}

func (a *App) persistJSON(key string, v any) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().SetJSON(key, v); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to persist setting")
	}
}

// Status returns a diagnostics snapshot.
func (a *App) Status() Status {
	a.lastMu.Lock()
	res := a.last.result
	a.lastMu.Unlock()

	return Status{
		Detector:            string(a.config.Kind),
		Running:             a.Running(),
		Detecting:           a.Detecting(),
		IgnoreColor:         a.gate.IgnoreColor().String(),
		FPS:                 a.camera.FPS(),
		FrameIndex:          res.FrameIndex,
		FramesProcessed:     a.framesProcessed.Load(),
		ShotsAccepted:       a.shotsAccepted.Load(),
		Candidates:          res.Candidates,
		BrightPixels:        res.BrightPixels,
		ExcessiveMotion:     res.ExcessiveMotion,
		ExcessiveBrightness: res.ExcessiveBrightness,
	}
}

// CandidateMask returns the frame size and candidate pixels of the latest
// processed frame.
func (a *App) CandidateMask() (width, height int, points []image.Point) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	points = make([]image.Point, len(a.last.result.CandidatePoints))
	copy(points, a.last.result.CandidatePoints)
	return a.last.width, a.last.height, points
}

// Preview returns a copy of the latest camera frame. The caller must close
// it. ok is false before the first frame.
func (a *App) Preview() (mat gocv.Mat, ok bool) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	if !a.last.hasPreview {
		return gocv.Mat{}, false
	}
	return a.last.preview.Clone(), true
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the shot detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// Gate returns the shot gate.
func (a *App) Gate() *shot.Gate {
	return a.gate
}
