package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photovault/internal/config"
	"photovault/internal/faces"
	"photovault/internal/logging"
	"photovault/internal/scheduler"
	"photovault/internal/tagger"
	"photovault/internal/thumbnail"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logging.Info("photovault starting")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("configuration error: %v", err)
	}

	if cfg.VipsEnabled {
		thumbnail.InitVips()
		defer thumbnail.ShutdownVips()
	}

	detector, embedder := setupFaces(cfg)
	if detector != nil {
		defer faces.ShutdownRuntime()
		defer detector.Close()
		defer embedder.Close()
	}

	var describe tagger.Tagger
	if cfg.OpenAIKey != "" {
		describe = tagger.NewOpenAITagger(cfg.OpenAIKey)
		logging.Info("scene tagger enabled")
	} else {
		logging.Info("scene tagger disabled (no API key)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.MetricsEnabled {
		srv = startMetricsServer(cfg.MetricsPort)
	}

	sched := scheduler.New(cfg, detector, embedder, describe)
	sched.Run(ctx)

	logging.Info("shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("metrics server shutdown: %v", err)
		}
	}
	logging.Info("photovault stopped")
}

// setupFaces initializes the ONNX runtime and loads both face models.
// Any failure disables the capability rather than aborting startup, so
// the daemon still produces thumbnails and metadata on hosts without the
// runtime installed.
func setupFaces(cfg *config.Config) (faces.Detector, faces.Embedder) {
	if !cfg.FacesEnabled() {
		logging.Info("face recognition disabled (models not configured)")
		return nil, nil
	}

	if err := faces.InitRuntime(cfg.OnnxLibraryPath); err != nil {
		logging.Warn("face recognition disabled: %v", err)
		return nil, nil
	}

	detector, err := faces.NewRetinaDetector(cfg.DetectorModelPath)
	if err != nil {
		faces.ShutdownRuntime()
		logging.Warn("face recognition disabled: %v", err)
		return nil, nil
	}

	embedder, err := faces.NewArcFaceEmbedder(cfg.EmbedderModelPath)
	if err != nil {
		detector.Close()
		faces.ShutdownRuntime()
		logging.Warn("face recognition disabled: %v", err)
		return nil, nil
	}

	logging.Info("face recognition enabled")
	return detector, embedder
}

func startMetricsServer(port string) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
	router.HandleFunc("/healthz", ok).Methods(http.MethodGet)
	router.HandleFunc("/livez", ok).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("metrics listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server: %v", err)
		}
	}()
	return srv
}
