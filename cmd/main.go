package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"

	"github.com/autodoc-ai/stepsync/internal/align"
	"github.com/autodoc-ai/stepsync/internal/api"
	"github.com/autodoc-ai/stepsync/internal/media"
	"github.com/autodoc-ai/stepsync/internal/pipeline"
	"github.com/autodoc-ai/stepsync/internal/queue"
	"github.com/autodoc-ai/stepsync/internal/service"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	runner := media.NewRunner(cfg.GetString("ffmpeg.path"), cfg.GetString("ffprobe.path"),
		cfg.GetDuration("ffmpeg.segmentTimeout"))
	if err := runner.CheckInstalled(ctx); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't find ffmpeg/ffprobe")
	}

	renderer, err := media.NewRenderer(runner, media.RenderOptions{
		OutputWidth:  cfg.GetInt("video.width"),
		OutputHeight: cfg.GetInt("video.height"),
		FPS:          cfg.GetInt("video.fps"),
		ZoomEase:     cfg.GetFloat64("video.zoomEase"),
		DefaultZoom:  cfg.GetFloat64("video.defaultZoom"),
	})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init renderer")
	}

	aligner := align.NewAligner(align.Options{
		MaxGapThreshold:     cfg.GetFloat64("align.maxGap"),
		MinSpeechGap:        cfg.GetFloat64("align.minSpeechGap"),
		PauseWordThreshold:  cfg.GetFloat64("align.pauseWordThreshold"),
		ConfidenceThreshold: cfg.GetFloat64("align.confidenceThreshold"),
	})

	status, err := pipeline.NewStatusStore(cfg.GetString("redis.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init status store")
	}
	hub := service.NewProgressHub()

	pl, err := pipeline.New(pipeline.Config{
		TempDir:     cfg.GetString("dirs.temp"),
		WorkDir:     cfg.GetString("dirs.work"),
		MaxClickGap: cfg.GetFloat64("steps.maxClickGap"),
		ZoomWidth:   cfg.GetInt("video.zoomWidth"),
		ZoomHeight:  cfg.GetInt("video.zoomHeight"),
	}, runner, renderer, aligner, status, hub)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init pipeline")
	}

	q, err := queue.New(cfg.GetString("redis.url"), queue.Options{
		Stream:            cfg.GetString("queue.stream"),
		Group:             cfg.GetString("queue.group"),
		HeartbeatInterval: cfg.GetDuration("queue.heartbeatInterval"),
		StaleThreshold:    cfg.GetDuration("queue.staleThreshold"),
		GCInterval:        cfg.GetDuration("queue.gcInterval"),
	})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init queue")
	}
	registerHandlers(q, pl)

	qDoneCh := make(chan struct{}, 1)
	go func() {
		defer close(qDoneCh)
		if err := q.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("queue consumer failed")
		}
	}()

	data := &service.Data{}
	data.Ctx = ctx
	data.Port = cfg.GetInt("port")
	data.Hub = hub
	data.Status = status

	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	case <-qDoneCh:
		goapp.Log.Info().Msg("Queue exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

func registerHandlers(q *queue.Queue, pl *pipeline.Pipeline) {
	for kind, h := range map[string]queue.Handler{
		api.KindRenderGuide: func(ctx context.Context, job api.Job) error {
			_, err := pl.RenderGuide(ctx, job)
			return err
		},
		api.KindMagicEdit: func(ctx context.Context, job api.Job) error {
			_, err := pl.MagicEdit(ctx, job)
			return err
		},
		api.KindShorts: pl.Shorts,
	} {
		if err := q.Register(kind, h); err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't register handler")
		}
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    STEPSYNC RENDER WORKER v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/autodoc-ai/stepsync"))
}
