package capture

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "zero config",
			in:   Config{},
			want: Config{Device: "0", FPS: DefaultFPS, Width: DefaultWidth, Height: DefaultHeight},
		},
		{
			name: "configured size and rate kept",
			in:   Config{Device: "2", FPS: 60, Width: 1280, Height: 720},
			want: Config{Device: "2", FPS: 60, Width: 1280, Height: 720},
		},
		{
			name: "negative values fall back",
			in:   Config{Device: "range.mp4", FPS: -1, Width: -640, Height: 0},
			want: Config{Device: "range.mp4", FPS: DefaultFPS, Width: DefaultWidth, Height: DefaultHeight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.in).(*cameraImpl)
			if cam.config != tt.want {
				t.Errorf("config = %+v, want %+v", cam.config, tt.want)
			}
			if cam.FPS() != tt.want.FPS {
				t.Errorf("FPS() = %d, want %d", cam.FPS(), tt.want.FPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be open before Open()")
			}
		})
	}
}

func TestCamera_Device(t *testing.T) {
	tests := []struct {
		device string
		want   interface{}
	}{
		{"", 0},
		{"0", 0},
		{"3", 3},
		{"/videos/range session.mp4", "/videos/range session.mp4"},
		{"rtsp://192.168.1.20/stream", "rtsp://192.168.1.20/stream"},
		{"1a", "1a"},
	}

	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			cam := NewCamera(Config{Device: tt.device}).(*cameraImpl)
			if got := cam.device(); got != tt.want {
				t.Errorf("device() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestGrabFrame(t *testing.T) {
	t.Run("failed read", func(t *testing.T) {
		mat, err := grabFrame(func(*gocv.Mat) bool { return false })
		if !errors.Is(err, ErrReadFailed) || mat != nil {
			t.Errorf("grabFrame() = %v, %v; want ErrReadFailed", mat, err)
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		mat, err := grabFrame(func(*gocv.Mat) bool { return true })
		if !errors.Is(err, ErrReadFailed) || mat != nil {
			t.Fatalf("grabFrame() = %v, %v; want ErrReadFailed", mat, err)
		}
		if !strings.Contains(err.Error(), "empty") {
			t.Errorf("expected the error to name the empty frame, got %q", err)
		}
	})

	t.Run("frame delivered", func(t *testing.T) {
		mat, err := grabFrame(func(m *gocv.Mat) bool {
			src := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
			defer src.Close()
			src.CopyTo(m)
			return true
		})
		if err != nil {
			t.Fatalf("grabFrame() error = %v", err)
		}
		defer mat.Close()
		if mat.Cols() != 64 || mat.Rows() != 48 {
			t.Errorf("frame size = %dx%d, want 64x48", mat.Cols(), mat.Rows())
		}
	})
}

func TestCamera_OpenMissingFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	path := filepath.Join(t.TempDir(), "missing.mp4")
	cam := NewCamera(Config{Device: path})

	err := cam.Open()
	if err == nil {
		cam.Close()
		t.Fatal("expected Open() to fail for a missing video file")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("expected error to name the device, got %q", err)
	}
	if cam.IsOpen() {
		t.Error("camera should stay closed after a failed Open()")
	}
}

func TestCamera_ClosedCamera(t *testing.T) {
	cam := NewCamera(Config{Device: "range.mp4"})

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on a closed camera = %v, want nil", err)
	}

	cam.SetFPS(0)
	if cam.FPS() != DefaultFPS {
		t.Errorf("SetFPS(0) changed FPS to %d", cam.FPS())
	}
	cam.SetFPS(15)
	if cam.FPS() != 15 {
		t.Errorf("FPS() = %d, want 15", cam.FPS())
	}
}
