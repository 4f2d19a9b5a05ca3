package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pcm-survey/internal/config"
	"pcm-survey/internal/eventing"
	"pcm-survey/internal/observability/metrics"
	"pcm-survey/internal/projection/echarts"
	"pcm-survey/internal/survey/application"
	"pcm-survey/internal/survey/application/events"
	surveyhttp "pcm-survey/internal/survey/interfaces/http"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init()

	bus := eventing.NewBus()
	bus.OnDatasetLoaded(func(_ context.Context, evt events.DatasetLoaded) error {
		logger.Printf("dataset loaded: id=%s source=%q points=%d routes=%d", evt.DatasetID, evt.SourceName, evt.Points, evt.Routes)
		return nil
	})
	bus.OnStateChanged(func(_ context.Context, evt events.StateChanged) error {
		logger.Printf("state changed: dataset=%s command=%s revision=%d", evt.DatasetID, evt.Command, evt.Revision)
		return nil
	})

	datasetService, err := application.NewDatasetService(bus, logger, cfg.MetricConfig())
	if err != nil {
		logger.Fatalf("dataset service error: %v", err)
	}

	datasetHandler, err := surveyhttp.NewDatasetHandler(datasetService, echarts.NewRenderer(), logger, cfg.MaxUploadBytes())
	if err != nil {
		logger.Fatalf("dataset handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/datasets", datasetHandler)
	mux.Handle("/api/v1/datasets/", datasetHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
