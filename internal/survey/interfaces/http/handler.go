// Package surveyhttp exposes the dataset API over plain net/http.
package surveyhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"pcm-survey/internal/export"
	"pcm-survey/internal/ingest"
	"pcm-survey/internal/observability/metrics"
	"pcm-survey/internal/projection"
	"pcm-survey/internal/projection/echarts"
	"pcm-survey/internal/projection/geomap"
	"pcm-survey/internal/survey/application"
)

const defaultMaxUploadBytes = 64 << 20

// DatasetHandler serves everything under /api/v1/datasets.
type DatasetHandler struct {
	service   *application.DatasetService
	renderer  *echarts.Renderer
	logger    *log.Logger
	maxUpload int64
}

// NewDatasetHandler constructs a DatasetHandler. maxUploadBytes <= 0 falls
// back to the default limit.
func NewDatasetHandler(service *application.DatasetService, renderer *echarts.Renderer, logger *log.Logger, maxUploadBytes int64) (*DatasetHandler, error) {
	if service == nil {
		return nil, errors.New("surveyhttp: dataset service is required")
	}
	if renderer == nil {
		return nil, errors.New("surveyhttp: chart renderer is required")
	}
	if logger == nil {
		return nil, errors.New("surveyhttp: logger is required")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &DatasetHandler{service: service, renderer: renderer, logger: logger, maxUpload: maxUploadBytes}, nil
}

// ServeHTTP routes /api/v1/datasets[/{id}[/{action}]].
func (h *DatasetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/datasets")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleUpload(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	sess, err := h.service.Get(id)
	if err != nil {
		http.Error(w, "dataset not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		h.requireGet(w, r, func() { h.handleDetail(w, sess) })
	case "commands":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCommand(w, r, id)
	case "view":
		h.requireGet(w, r, func() { h.handleView(w, sess) })
	case "map":
		h.requireGet(w, r, func() { h.handleMap(w, sess) })
	case "summary":
		h.requireGet(w, r, func() { h.handleSummary(w, sess) })
	case "export":
		h.requireGet(w, r, func() { h.handleExport(w, r, sess) })
	case "chart":
		h.requireGet(w, r, func() { h.handleChart(w, sess) })
	default:
		http.NotFound(w, r)
	}
}

func (h *DatasetHandler) requireGet(w http.ResponseWriter, r *http.Request, fn func()) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn()
}

func isInputError(err error) bool {
	return errors.Is(err, ingest.ErrEmptyFile) ||
		errors.Is(err, ingest.ErrUnsupportedExtension) ||
		errors.Is(err, ingest.ErrMissingStationColumn)
}

// handleUpload parses a multipart upload (field "file") or a raw body with a
// filename query parameter, and loads the dataset.
func (h *DatasetHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var (
		filename string
		data     []byte
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			http.Error(w, "file field is required", http.StatusBadRequest)
			return
		}
		defer file.Close()
		filename = header.Filename
		data, err = io.ReadAll(file)
	} else {
		filename = r.URL.Query().Get("filename")
		if filename == "" {
			http.Error(w, "filename query parameter is required", http.StatusBadRequest)
			return
		}
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		http.Error(w, "read upload error", http.StatusBadRequest)
		return
	}

	ds, err := ingest.Read(filename, data)
	metrics.ObserveIngest(err, time.Since(start))
	if err != nil {
		if isInputError(err) {
			metrics.RecordIngestError(err.Error())
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Printf("parse upload %q: %v", filename, err)
		http.Error(w, "parse upload error", http.StatusInternalServerError)
		return
	}

	sess, err := h.service.LoadDataset(filename, ds.Points, ds.Columns)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.RecordDatasetLoaded(len(ds.Points))

	snap := sess.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          snap.DatasetID,
		"source":      snap.SourceName,
		"routes":      snap.Routes,
		"activeRoute": snap.ActiveRoute,
		"points":      len(snap.Points),
	})
}

func (h *DatasetHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"datasets": h.service.IDs()})
}

func (h *DatasetHandler) handleDetail(w http.ResponseWriter, sess *application.Session) {
	snap := sess.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":           snap.DatasetID,
		"source":       snap.SourceName,
		"loaded":       snap.CreatedAt,
		"routes":       snap.Routes,
		"activeRoute":  snap.ActiveRoute,
		"points":       len(snap.Points),
		"groups":       len(snap.Groups),
		"removedCount": snap.RemovedCount,
		"revision":     snap.Revision,
	})
}

func (h *DatasetHandler) handleCommand(w http.ResponseWriter, r *http.Request, id string) {
	var cmd application.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid command payload", http.StatusBadRequest)
		return
	}
	res, err := h.service.Execute(id, cmd)
	metrics.ObserveCommand(cmd.Type, len(res.Warnings) > 0, err)
	if err != nil {
		if errors.Is(err, application.ErrDatasetNotFound) {
			http.Error(w, "dataset not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (h *DatasetHandler) handleView(w http.ResponseWriter, sess *application.Session) {
	snap := sess.Snapshot()
	view := projection.BuildView(&snap)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

func (h *DatasetHandler) handleMap(w http.ResponseWriter, sess *application.Session) {
	snap := sess.Snapshot()
	m := geomap.BuildMap(&snap)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

func (h *DatasetHandler) handleSummary(w http.ResponseWriter, sess *application.Session) {
	snap := sess.Snapshot()
	view := projection.BuildView(&snap)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view.Summary)
}

func (h *DatasetHandler) handleExport(w http.ResponseWriter, r *http.Request, sess *application.Session) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	snap := sess.Snapshot()

	start := time.Now()
	var (
		body        []byte
		err         error
		contentType string
		ext         string
	)
	switch format {
	case "csv":
		body, err = export.BuildCSV(&snap)
		contentType, ext = "text/csv", "csv"
	case "xlsx":
		body, err = export.BuildXLSX(&snap)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	case "json":
		body, err = export.BuildJSON(&snap)
		contentType, ext = "application/json", "json"
	case "pdf":
		body, err = export.BuildPDF(&snap, r.URL.Query().Get("notes"))
		contentType, ext = "application/pdf", "pdf"
	default:
		http.Error(w, fmt.Sprintf("unknown export format %q", format), http.StatusBadRequest)
		return
	}
	metrics.ObserveExport(format, err, time.Since(start))
	if err != nil {
		h.logger.Printf("build %s export for %s: %v", format, snap.DatasetID, err)
		http.Error(w, "build export error", http.StatusInternalServerError)
		return
	}

	h.service.RecordExport(snap.DatasetID, format, len(body))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "pcm-survey-"+snap.DatasetID+"."+ext))
	_, _ = w.Write(body)
}

func (h *DatasetHandler) handleChart(w http.ResponseWriter, sess *application.Session) {
	snap := sess.Snapshot()
	view := projection.BuildView(&snap)

	start := time.Now()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.renderer.Render(w, &view)
	metrics.ObserveChartRender(err, time.Since(start))
	if err != nil {
		if errors.Is(err, echarts.ErrRenderInProgress) {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		h.logger.Printf("render chart for %s: %v", snap.DatasetID, err)
	}
}
