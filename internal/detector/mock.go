package detector

import (
	"context"
	"sync"

	"github.com/ayusman/dryfire/internal/frame"
	"github.com/ayusman/dryfire/internal/shot"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detections []Detection
	err        error
	scanner    *Scanner
	fps        int
	frames     int64
	mu         sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{
		scanner: NewScanner(DefaultSectorRows, DefaultSectorCols, 1),
	}
}

// SetDetections sets the detections returned by the next ProcessFrame call.
// They are consumed once.
func (m *MockDetector) SetDetections(detections ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
}

// SetError sets the error that will be returned by ProcessFrame.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ProcessFrame returns the pre-configured detections or error.
func (m *MockDetector) ProcessFrame(_ context.Context, _ frame.Frame, detecting bool) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}

	m.frames++
	result := Result{FrameIndex: m.frames}
	if detecting {
		result.Detections = m.detections
		result.Candidates = len(m.detections)
	}
	m.detections = nil
	return result, nil
}

// FPS returns the last frame rate passed to SetFPS.
func (m *MockDetector) FPS() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

// SetFPS records the frame rate.
func (m *MockDetector) SetFPS(fps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps = fps
}

// Scanner returns a 3x3 scanner.
func (m *MockDetector) Scanner() *Scanner { return m.scanner }

// Reset is a no-op for the mock detector.
func (m *MockDetector) Reset() {}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// RedShot returns a preset red Detection at (x, y).
func RedShot(x, y float64) Detection {
	return Detection{X: x, Y: y, Color: shot.ColorRed, Size: 29}
}

// GreenShot returns a preset green Detection at (x, y).
func GreenShot(x, y float64) Detection {
	return Detection{X: x, Y: y, Color: shot.ColorGreen, Size: 29}
}
