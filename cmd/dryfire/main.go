package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/felixge/fgprof"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/dryfire/internal/app"
	"github.com/ayusman/dryfire/internal/capture"
	"github.com/ayusman/dryfire/internal/config"
	"github.com/ayusman/dryfire/internal/detector"
	"github.com/ayusman/dryfire/internal/logger"
	"github.com/ayusman/dryfire/internal/server"
	"github.com/ayusman/dryfire/internal/shot"
	"github.com/ayusman/dryfire/internal/store"
	"github.com/ayusman/dryfire/internal/tray"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	headless := flag.Bool("headless", false, "run without the system tray")
	flag.Parse()

	logger.Init("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}
	snap := cfg.Get()
	logger.Init(snap.Log.Level)

	log.Info().Str("config", *configPath).Msg("Starting dryfire")

	if snap.Server.ProfileAddr != "" {
		go startProfiler(snap.Server.ProfileAddr)
	}

	kind, err := detector.ParseKind(snap.Detection.Kind)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid detector kind")
	}

	det, err := detector.New(kind, detector.Config{
		FPS:                 snap.Camera.FPS,
		MovingAveragePeriod: snap.Detection.MovingAveragePeriod,
		MinShotDimension:    snap.Detection.MinShotDimension,
		SectorRows:          snap.Detection.SectorRows,
		SectorCols:          snap.Detection.SectorCols,
		Workers:             snap.Detection.Workers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create detector")
	}

	camera := capture.NewCamera(capture.Config{
		Device: snap.Camera.Device,
		FPS:    snap.Camera.FPS,
		Width:  snap.Camera.Width,
		Height: snap.Camera.Height,
	})

	dbPath, err := databasePath(snap.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare data directory")
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to initialize store")
	}

	// Load validated the color already.
	ignore, _ := shot.ParseColor(snap.Shots.IgnoreColor)
	gate := shot.NewGate(shot.GateConfig{
		IgnoreColor: ignore,
		Arena:       snap.Shots.Arena,
		Dedup: shot.NewWindowDeduplicator(
			time.Duration(snap.Shots.DedupWindowMs)*time.Millisecond,
			snap.Shots.DedupRadius,
		),
	})

	a := app.New(app.Config{
		Camera:            camera,
		Detector:          det,
		Kind:              kind,
		Gate:              gate,
		Store:             st,
		Detecting:         !snap.Detection.StartPaused,
		DisabledSectors:   snap.Detection.DisabledSectors,
		ScaleForProjector: snap.Shots.ScaleForProjector,
	})

	webDir := findWebDir(snap.Server.StaticDir)
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("Serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: a,
		Preview:    a,
	})

	gate.Subscribe(st.Shots())
	gate.Subscribe(srv.Hub())

	if err := a.Start(); err != nil {
		log.Fatal().Err(err).Str("device", snap.Camera.Device).Msg("Failed to start detection pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(snap.Server.Addr); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			stop()
		}
	}()

	if *headless {
		<-ctx.Done()
	} else {
		runTray(ctx, stop, a, gate, dashboardURL(snap.Server.Addr))
	}

	log.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	a.Stop()

	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
	}
}

// runTray blocks in the system tray loop until Quit is picked or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, gate *shot.Gate, url string) {
	t := tray.New(a.Detecting())
	t.OnToggle(a.SetDetecting)
	t.OnDashboard(func() {
		if err := openBrowser(url); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Failed to open dashboard")
		}
	})
	t.OnQuit(stop)
	gate.Subscribe(t)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

// startProfiler serves pprof and fgprof on a separate port.
func startProfiler(addr string) {
	log.Info().Str("pprof", "http://"+addr+"/debug/pprof").Msg("Standard pprof available")
	log.Info().Str("fgprof", "http://"+addr+"/debug/fgprof").Msg("Full goroutine profiler available")

	http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Profiling server error")
	}
}

// databasePath returns the configured path, or ~/.dryfire/dryfire.db with
// its directory created.
func databasePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(homeDir, ".dryfire")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "dryfire.db"), nil
}

// findWebDir returns the first existing directory among the configured one,
// "web", "../web" and ~/.dryfire/web, or "" when none exists.
func findWebDir(configured string) string {
	candidates := []string{configured, "web", "../web"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".dryfire", "web"))
	}

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// dashboardURL turns a listen address such as ":8080" into a browsable URL.
func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
