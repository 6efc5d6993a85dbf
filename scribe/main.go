package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/controllers"
	"scribe/scribe/routes"
	"scribe/scribe/services/calendar"
	"scribe/scribe/services/llm"
	"scribe/scribe/services/meetings"
	"scribe/scribe/services/speech"
	"scribe/scribe/services/summary"
	"scribe/scribe/sessions"
	"scribe/scribe/sources/psql"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/storage"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := psql.NewDatabase(initCtx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.Default()
	userDAO := dao.NewUserDAO(db.DB)
	meetingDAO := dao.NewMeetingDAO(db.DB)
	transcriptDAO := dao.NewTranscriptDAO(db.DB)
	summaryDAO := dao.NewMeetingSummaryDAO(db.DB)

	engine, err := speech.NewGoogleEngine(initCtx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("speech client error", zap.Error(err))
		os.Exit(1)
	}
	defer engine.Close()

	completer, err := llm.FromConfig(initCtx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("completion client error", zap.Error(err))
		os.Exit(1)
	}
	logging.AppLogger.Info("Completion provider ready", zap.String("provider", completer.Provider()))

	// a typed nil *MinIOClient in the interface would look configured
	var archive meetings.Archive
	if cfg.MinIOEndpoint != "" {
		minioClient, err := storage.NewMinIOClient(initCtx, cfg)
		if err != nil {
			logging.ErrorLogger.Error("minio connection error", zap.Error(err))
			os.Exit(1)
		}
		archive = minioClient
	} else {
		logging.AppLogger.Info("MINIO_ENDPOINT not set, audio archive disabled")
	}

	lifecycle := meetings.NewLifecycle(meetings.Options{
		Meetings:    meetingDAO,
		Transcripts: transcriptDAO,
		Registry:    sessions.NewRegistry(m),
		Engine:      engine,
		Archive:     archive,
		Summarizer:  summary.NewGenerator(transcriptDAO, summaryDAO, completer, cfg.Policy, m),
		Policy:      cfg.Policy,
		Metrics:     m,
	})
	monitor := meetings.NewInactivityMonitor(meetingDAO, lifecycle, cfg.Policy, m)
	calendarSource := calendar.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, userDAO)
	trigger := meetings.NewCalendarTrigger(userDAO, meetingDAO, lifecycle, calendarSource, cfg.Policy)

	router := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Auth:     controllers.NewAuthController(userDAO, cfg.JWTSecret),
		Users:    controllers.NewUserController(userDAO),
		Meetings: controllers.NewMeetingController(meetingDAO, transcriptDAO, summaryDAO, lifecycle),
		Health:   controllers.NewHealthController(db),
		Metrics:  promhttp.Handler(),
	})
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.AppLogger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return trigger.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorLogger.Error("server stopped with error", zap.Error(err))
	}

	finalCtx, finalCancel := context.WithTimeout(context.Background(), cfg.Policy.FinalizeTimeout)
	defer finalCancel()
	if err := lifecycle.Shutdown(finalCtx); err != nil {
		logging.ErrorLogger.Error("shutdown incomplete", zap.Error(err))
	}
	monitor.Wait()
	logging.AppLogger.Info("server shutdown complete")
}
