package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type healthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	FeedClients int    `json:"feed_clients"`
}

func getHealth(t *testing.T, h http.Handler) healthResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	return resp
}

func TestServer_HealthCountsFeedClients(t *testing.T) {
	hub := NewShotsHub()
	s := New(Config{Hub: hub})
	ts := httptest.NewServer(s)
	defer ts.Close()

	if got := getHealth(t, s); got.Status != "ok" || got.FeedClients != 0 {
		t.Errorf("health = %+v, want ok with 0 feed clients", got)
	}

	dialFeed(t, ts, hub, 1)
	dialFeed(t, ts, hub, 2)

	got := getHealth(t, s)
	if got.FeedClients != 2 {
		t.Errorf("feed_clients = %d, want 2", got.FeedClients)
	}
	if _, err := time.ParseDuration(got.Uptime); err != nil {
		t.Errorf("uptime %q is not a duration: %v", got.Uptime, err)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/health = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServer_Hub(t *testing.T) {
	hub := NewShotsHub()
	if got := New(Config{Hub: hub}).Hub(); got != hub {
		t.Error("expected the configured hub")
	}
	if New(Config{}).Hub() == nil {
		t.Error("expected a hub to be created")
	}
}

func TestServer_StaticDirDoesNotShadowAPI(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dryfire</h1>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "api"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "api", "health"), []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(Config{StaticDir: dir})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<h1>dryfire</h1>" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}

	if got := getHealth(t, s); got.Status != "ok" {
		t.Errorf("health = %+v, want the API response", got)
	}
}

func TestServer_ShutdownStopsListener(t *testing.T) {
	s := New(Config{})

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe("127.0.0.1:0") }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("ListenAndServe returned %v after Shutdown, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}

func TestServer_ListenAndServeBadAddr(t *testing.T) {
	err := New(Config{}).ListenAndServe("256.0.0.1:bad")
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		t.Errorf("expected listen error, got %v", err)
	}
}

func TestServer_ControllerRoutesRequireController(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/detection", "/api/sectors", "/api/diagnostics", "/api/debug/mask", "/api/shots", "/api/stream"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

type fakeMask struct {
	width, height int
	points        []image.Point
}

func (f fakeMask) CandidateMask() (int, int, []image.Point) {
	return f.width, f.height, f.points
}

func TestMaskHandler(t *testing.T) {
	h := NewMaskHandler(fakeMask{width: 8, height: 6, points: []image.Point{{X: 2, Y: 3}, {X: 7, Y: 5}}})

	t.Run("renders candidates white", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/debug/mask?scale=2", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected Content-Type image/png, got %s", ct)
		}

		img, err := png.Decode(rec.Body)
		if err != nil {
			t.Fatalf("failed to decode PNG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
			t.Fatalf("expected 16x12 image, got %v", b)
		}

		r, _, _, _ := img.At(4, 6).RGBA()
		if r != 0xffff {
			t.Errorf("expected candidate pixel white, got r=%d", r)
		}
		r, _, _, _ = img.At(0, 0).RGBA()
		if r != 0 {
			t.Errorf("expected background black, got r=%d", r)
		}
	})

	t.Run("rejects bad scale", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/debug/mask?scale=99", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("no frame yet", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/debug/mask", nil)
		rec := httptest.NewRecorder()

		NewMaskHandler(fakeMask{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestRenderMask(t *testing.T) {
	img := RenderMask(4, 4, []image.Point{{X: 1, Y: 1}})

	if got := img.NRGBAAt(1, 1); got.R != 255 || got.A != 255 {
		t.Errorf("expected white at (1,1), got %v", got)
	}
	if got := img.NRGBAAt(2, 2); got.R != 0 || got.A != 255 {
		t.Errorf("expected opaque black at (2,2), got %v", got)
	}
}
