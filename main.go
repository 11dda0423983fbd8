package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"

	"doccam/config"
	"doccam/notify"
	"doccam/serve"
	"doccam/store"
	"doccam/video"
	"doccam/video/process"
	"doccam/video/sink"
	"doccam/video/source"
)

var (
	port       = flag.Int("port", 8080, "Port to host web frontend.")
	configPath = flag.String("config", "", "Path to a JSON config file. Defaults are used when empty.")
	sessions   = flag.Int("sessions", 0, "Number of capture sessions to run before exiting. Zero runs until interrupted.")
)

func setLogLevel(c *config.Config) {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Errorf("Ignoring log level: %v", err)
		return
	}
	log.SetLevel(lvl)
}

func detectorOptions(c *config.Config) process.DetectorOptions {
	return process.DetectorOptions{
		AspectRatio:     c.AspectRatio,
		AspectTolerance: c.AspectTolerance,
		MinAreaRatio:    c.MinAreaRatio,
		MaxResults:      c.MaxResults,
		CannyLow:        c.CannyLow,
		CannyHigh:       c.CannyHigh,
	}
}

func schedulerOptions(c *config.Config) video.SchedulerOptions {
	policy, err := video.ParseLossPolicy(c.LossPolicy)
	if err != nil {
		log.Warnf("%v, keeping the timer armed on loss", err)
	}
	return video.SchedulerOptions{
		Dwell:             c.Dwell(),
		LossPolicy:        policy,
		RearmAfterFailure: c.RearmAfterFailure,
	}
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.OnChange(setLogLevel)
	if *configPath != "" {
		if err := config.Load(ctx, *configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		c := config.Defaults()
		config.Set(&c)
	}
	cfg := config.Get()

	st, err := store.New(store.Options{
		BasePath:  cfg.CaptureDir,
		ThumbSize: image.Pt(cfg.ThumbWidth, cfg.ThumbHeight),
	})
	if err != nil {
		log.Fatalf("Failed to open capture store: %v", err)
	}

	events := serve.NewMetaUpdater()
	defer events.Close()
	notifier := notify.NewNotifier(events)
	st.Listeners = append(st.Listeners, notifier)

	mjpegServer := sink.NewMJPEGServer()
	previewSize := image.Pt(cfg.PreviewWidth, cfg.PreviewHeight)
	preview, err := mjpegServer.NewSurface("preview", previewSize, cfg.Region())
	if err != nil {
		log.Fatalf("Failed to create preview stream: %v", err)
	}
	defer preview.Close()
	surfaces := []sink.Surface{preview}

	if cfg.Window {
		// The native window stays bound to the first session's worker thread.
		if *sessions != 1 {
			log.Warnf("Window preview supports a single session, running one")
			*sessions = 1
		}
		window := sink.NewWindow("doccam", previewSize, cfg.Region())
		defer window.Close()
		surfaces = append(surfaces, window)
	}

	var debug *sink.MJPEGStreamPool
	if cfg.DebugStreams {
		debug = mjpegServer.NewStreamPool("debug-")
		defer debug.Close()
	}

	r := serve.NewRouter(serve.RouterOptions{
		Store:  st,
		MJPEG:  mjpegServer,
		Events: events,
	})
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: handlers.LoggingHandler(os.Stdout, r),
	}
	go func() {
		log.Infof("Hosting web frontend on port %d", *port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Web frontend failed: %v", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	for n := 0; *sessions == 0 || n < *sessions; n++ {
		// Pick up config reloads between sessions.
		cfg := config.Get()

		src := source.NewVideoCapture(source.VideoCaptureOptions{
			Devices:  cfg.Devices,
			Width:    cfg.Width,
			Height:   cfg.Height,
			Portrait: cfg.Portrait,
		})
		det := process.NewContourDetector(detectorOptions(cfg))
		det.Debug = debug

		ctl := video.NewController(video.ControllerOptions{
			Source:       src,
			Detector:     det,
			Surfaces:     surfaces,
			Consumer:     st,
			Listeners:    []video.Listener{notifier},
			Failures:     []video.FailureListener{notifier},
			Scheduler:    schedulerOptions(cfg),
			LockOSThread: cfg.Window,
		})
		err := ctl.Run(ctx)
		det.Close()
		notifier.EndSession(ctl.ID)

		switch {
		case err == nil:
			continue
		case errors.Is(err, context.Canceled):
			log.Infof("Caught signal, shutting down")
			return
		case errors.Is(err, source.ErrNoDevice):
			log.Fatalf("No capture device available: %v", err)
		default:
			log.Errorf("Capture session failed: %v", err)
			return
		}
	}
}
