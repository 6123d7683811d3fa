package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/api/handlers"
	"emotion-cam-go/internal/api/middleware"
	"emotion-cam-go/internal/capture"
	"emotion-cam-go/internal/cleanup"
	"emotion-cam-go/internal/core/processor"
	"emotion-cam-go/internal/integrations/homeassistant"
	"emotion-cam-go/internal/integrations/mqtt"
	"emotion-cam-go/internal/integrations/opencv"
	"emotion-cam-go/internal/integrations/provider"
	"emotion-cam-go/internal/recorder"
	"emotion-cam-go/internal/server/sse"
	"emotion-cam-go/internal/server/ws"
	"emotion-cam-go/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveOpts struct {
	autostart bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API with live detection events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveOpts.autostart, "autostart", false, "Start streaming from camera.source on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	// Datenbank
	repo, store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Detektoren
	ocv := opencv.NewService(cfg.Detectors, cfg.Server.SnapshotBuffer)
	manager := provider.CreateManager(ctx, cfg, ocv)
	defer manager.Close()

	// MQTT ist optional, ohne Broker läuft der Dienst weiter
	var resultPub processor.ResultPublisher
	var sessionPub processor.SessionPublisher
	mqttClient := mqtt.NewClient(cfg.MQTT)
	if cfg.MQTT.Enabled {
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to initialize MQTT client: %v. Continuing without MQTT.", err)
		} else {
			pub := mqtt.NewPublisher(mqttClient, cfg.MQTT.Topic)
			resultPub, sessionPub = pub, pub
			defer mqttClient.Stop()

			if cfg.MQTT.Discovery {
				discovery := homeassistant.NewDiscovery(mqttClient, cfg.MQTT.Topic, cfg.MQTT.DiscoveryPrefix, Version)
				if err := discovery.Register(); err != nil {
					log.Warnf("Home Assistant discovery: %v", err)
				}
			}
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	// Verarbeitung
	logger := session.NewLogger(cfg.Session.OutputDir, store)
	rec := recorder.New(nil)
	pipeline := processor.NewPipeline(manager, processor.PipelineOptions{
		Session:   logger,
		Recorder:  rec,
		Snapshots: ocv.Snapshots,
		Publisher: resultPub,
	})
	if def := cfg.Detectors.Default; def != "" && manager.Has(def) {
		if err := pipeline.SetDetector(def); err != nil {
			log.Warnf("Failed to select detector %s: %v", def, err)
		}
	}

	h := capture.NewHandler(capture.OptionsFromConfig(cfg.Camera), capture.OpenDevice)
	controller := processor.NewController(h, pipeline, rec, logger, sessionPub, processor.ControllerOptions{
		RecordingDir:  cfg.Recording.OutputDir,
		FPS:           cfg.Recording.FPS,
		RetryAttempts: cfg.Camera.RetryAttempts,
		RetryDelay:    cfg.Camera.RetryDelay,
	})
	defer controller.Shutdown()
	if sessionPub != nil {
		mqttClient.RegisterHandler(controller)
	}

	// Event-Hubs
	sseHub := sse.NewHub()
	go sseHub.Run(ctx)
	wsHub := ws.NewHub()
	defer wsHub.Close()
	pipeline.AddBroadcaster(sseHub)
	pipeline.AddBroadcaster(wsHub)

	pool := processor.NewWorkerPool(processor.NewImageAnalyzer(manager), cfg.Server.AnalyzeWorkers)
	defer pool.Shutdown()

	// Bereinigung
	var pruner cleanup.SessionPruner
	if repo != nil {
		pruner = repo
	}
	cleanupService := cleanup.NewService(pruner, cfg.Cleanup.RetentionDays, cfg.Cleanup.Interval,
		cfg.Session.OutputDir, cfg.Recording.OutputDir)
	cleanupService.StartBackgroundCleanup()
	defer cleanupService.StopBackgroundCleanup()

	translator, err := middleware.NewTranslator(cfg.I18n.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	router := newRouter(cfg, translator)
	api := router.Group("/api")
	handlers.NewAPIHandler(cfg, controller, pipeline, pool).RegisterRoutes(api)
	handlers.NewSystemHandler(pool, pipeline, sseHub, wsHub).RegisterRoutes(api)
	if repo != nil {
		handlers.NewSessionHandler(repo).RegisterRoutes(api)
	}
	ocv.Snapshots.RegisterRoutes(api)
	api.GET("/events", sseHub.Handler())
	api.GET("/ws", wsHub.Handler())

	if serveOpts.autostart {
		if err := controller.StartStream(ctx, cfg.Camera.Source, ""); err != nil {
			log.Errorf("Autostart failed: %v", err)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown: %v", err)
	}
	log.Info("Server stopped.")
	return nil
}

func newRouter(cfg *config.Config, translator *middleware.Translator) *gin.Engine {
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Language", "X-Requested-With", "Connection", "Upgrade"},
		AllowCredentials: false,
		AllowAllOrigins:  true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(sessions.Sessions("emotion_cam", cookie.NewStore([]byte(cfg.Server.SessionSecret))))
	r.Use(middleware.I18n(translator))
	return r
}

// requestLogger protokolliert Anfragen über logrus
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"component": "http",
			"status":    c.Writer.Status(),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"duration":  time.Since(start),
		}).Debug("Request handled")
	}
}
