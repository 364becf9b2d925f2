package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/dryfire/internal/capture"
	"github.com/ayusman/dryfire/internal/detector"
	"github.com/ayusman/dryfire/internal/frame"
)

// ReadFailureWarnAfter is the number of consecutive failed camera reads
// before a warning is logged.
const ReadFailureWarnAfter = 30

// runPipeline is the main detection loop. Every tick it reads one frame,
// converts it to HSV, runs the detector and submits detections to the gate.
//
// Pipeline logic:
// 1. Tick at the camera frame rate, following rate changes
// 2. Read a BGR frame and keep it as the preview
// 3. Convert to HSV and run the detector with the current detecting flag
// 4. Submit every detection to the shot gate
// 5. Exit when the context is cancelled or the source runs dry
func (a *App) runPipeline(ctx context.Context) {
	fps := a.camera.FPS()
	ticker := time.NewTicker(frameInterval(fps))
	defer ticker.Stop()

	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if current := a.camera.FPS(); current != fps {
				fps = current
				ticker.Reset(frameInterval(fps))
				a.detector.SetFPS(fps)
				log.Info().Int("fps", fps).Msg("Frame rate changed")
			}

			err := a.processNext(ctx)
			switch {
			case err == nil:
				failures = 0
			case errors.Is(err, capture.ErrNoMoreFrames):
				log.Info().Msg("Frame source exhausted")
				return
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, capture.ErrReadFailed):
				failures++
				if failures == ReadFailureWarnAfter {
					log.Warn().Err(err).Int("failures", failures).Msg("Camera keeps failing to deliver frames")
				}
			default:
				log.Error().Err(err).Msg("Error processing frame")
			}
		}
	}
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}

// processNext reads, converts and processes a single camera frame.
func (a *App) processNext(ctx context.Context) error {
	mat, err := a.camera.ReadFrame()
	if err != nil {
		return err
	}
	defer mat.Close()

	hsv, err := capture.ToHSV(mat)
	if err != nil {
		return err
	}

	a.setPreview(mat)

	_, err = a.ProcessFrame(ctx, hsv)
	return err
}

// ProcessFrame runs one HSV frame through the detector and the shot gate
// and returns the detector result.
func (a *App) ProcessFrame(ctx context.Context, f frame.Frame) (detector.Result, error) {
	res, err := a.detector.ProcessFrame(ctx, f, a.Detecting())
	if err != nil {
		return res, err
	}
	a.framesProcessed.Add(1)

	a.lastMu.Lock()
	a.last.width, a.last.height = f.Cols(), f.Rows()
	a.last.result = res
	a.lastMu.Unlock()

	for _, d := range res.Detections {
		if a.gate.Submit(d.Color, d.X, d.Y, res.FrameIndex, a.config.ScaleForProjector) {
			a.shotsAccepted.Add(1)
		}
	}

	return res, nil
}

func (a *App) setPreview(mat *gocv.Mat) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	if a.last.hasPreview {
		a.last.preview.Close()
	}
	a.last.preview = mat.Clone()
	a.last.hasPreview = true
}
