package app

import (
	"testing"
	"time"

	"github.com/ayusman/dryfire/internal/capture"
	"github.com/ayusman/dryfire/internal/detector"
	"github.com/ayusman/dryfire/internal/frame"
	"github.com/ayusman/dryfire/internal/shot"
	"github.com/ayusman/dryfire/testdata"
)

func TestApp_Pipeline_PlaysBackShot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st := newTestStore(t)

	bg := testdata.Uniform(64, 48, testdata.Background)
	buffers := make([]*frame.Buffer, 0, 28)
	for i := 0; i < 25; i++ {
		buffers = append(buffers, bg)
	}
	buffers = append(buffers, testdata.WithDisk(bg, 32, 24, 3, testdata.Blowout), bg, bg)

	cam, err := capture.NewMockCameraFromBuffers(buffers, false)
	if err != nil {
		t.Fatalf("NewMockCameraFromBuffers failed: %v", err)
	}
	defer cam.CloseFrames()
	cam.SetFPS(100)

	cfg := detector.DefaultConfig()
	cfg.MinShotDimension = 6

	rec := &recorder{}
	gate := shot.NewGate(shot.GateConfig{Dedup: shot.NewWindowDeduplicator(0, 0)})
	gate.Subscribe(rec)
	gate.Subscribe(st.Shots())

	a := New(Config{
		Camera:    cam,
		Detector:  detector.NewPixelDetector(cfg),
		Kind:      detector.KindPixel,
		Gate:      gate,
		Store:     st,
		Detecting: true,
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish playback")
	}

	if a.Running() {
		t.Error("pipeline should stop once the camera runs dry")
	}

	preview, ok := a.Preview()
	if !ok {
		t.Error("expected a preview frame")
	} else {
		preview.Close()
	}
	a.Stop()

	shots := rec.Shots()
	if len(shots) != 1 {
		t.Fatalf("expected 1 shot, got %d", len(shots))
	}
	if shots[0].X != 32 || shots[0].Y != 24 {
		t.Errorf("shot at (%.1f, %.1f), want (32, 24)", shots[0].X, shots[0].Y)
	}
	if shots[0].FrameIndex != 26 {
		t.Errorf("frame index = %d, want 26", shots[0].FrameIndex)
	}

	n, err := st.Shots().Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 stored shot, got %d", n)
	}

	if got := a.Status().FramesProcessed; got != int64(len(buffers)) {
		t.Errorf("frames processed = %d, want %d", got, len(buffers))
	}
}
