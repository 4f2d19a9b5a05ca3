package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"pcm-survey/internal/survey/application/events"
	survey "pcm-survey/internal/survey/domain"
)

// ErrDatasetNotFound is returned when a session id resolves to nothing.
var ErrDatasetNotFound = errors.New("application: dataset not found")

// EventPublisher is the slice of the event bus the service publishes to.
type EventPublisher interface {
	PublishDatasetLoaded(ctx context.Context, evt events.DatasetLoaded) error
	PublishStateChanged(ctx context.Context, evt events.StateChanged) error
	PublishExportBuilt(ctx context.Context, evt events.ExportBuilt) error
}

// DatasetService keeps the live sessions and publishes lifecycle events on
// the bus. Sessions exist only in memory; restarting the process drops them.
type DatasetService struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	bus       EventPublisher
	logger    *log.Logger
	metricCfg survey.MetricConfig
}

// NewDatasetService wires the service. Both dependencies are required.
func NewDatasetService(bus EventPublisher, logger *log.Logger, cfg survey.MetricConfig) (*DatasetService, error) {
	if bus == nil {
		return nil, errors.New("application: event bus is required")
	}
	if logger == nil {
		return nil, errors.New("application: logger is required")
	}
	return &DatasetService{
		sessions:  make(map[string]*Session),
		bus:       bus,
		logger:    logger,
		metricCfg: cfg,
	}, nil
}

// LoadDataset creates a session for a parsed point set and announces it.
func (svc *DatasetService) LoadDataset(sourceName string, points []*survey.Point, columns []string) (*Session, error) {
	if len(points) == 0 {
		return nil, survey.ErrEmptyRoute
	}
	sess := NewSession(sourceName, points, columns, svc.metricCfg)

	svc.mu.Lock()
	svc.sessions[sess.ID()] = sess
	svc.mu.Unlock()

	if err := svc.bus.PublishDatasetLoaded(context.Background(), events.DatasetLoaded{
		DatasetID:  sess.ID(),
		SourceName: sourceName,
		Points:     len(points),
		Routes:     len(survey.RouteIDs(points)),
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		svc.logger.Printf("publish dataset loaded event: %v", err)
	}
	svc.logger.Printf("dataset %s loaded: %d points from %q", sess.ID(), len(points), sourceName)
	return sess, nil
}

// Get resolves a session by id.
func (svc *DatasetService) Get(id string) (*Session, error) {
	svc.mu.RLock()
	sess, ok := svc.sessions[id]
	svc.mu.RUnlock()
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return sess, nil
}

// IDs lists the known dataset ids, sorted.
func (svc *DatasetService) IDs() []string {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	ids := make([]string, 0, len(svc.sessions))
	for id := range svc.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordExport announces a built export payload.
func (svc *DatasetService) RecordExport(id, format string, size int) {
	if err := svc.bus.PublishExportBuilt(context.Background(), events.ExportBuilt{
		DatasetID:  id,
		Format:     format,
		Bytes:      size,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		svc.logger.Printf("publish export built event: %v", err)
	}
}

// Execute applies one command to a dataset and announces the state change.
func (svc *DatasetService) Execute(id string, cmd Command) (Result, error) {
	sess, err := svc.Get(id)
	if err != nil {
		return Result{}, err
	}
	res, err := sess.Apply(cmd)
	if err != nil {
		return res, err
	}
	if len(res.Warnings) == 0 {
		if err := svc.bus.PublishStateChanged(context.Background(), events.StateChanged{
			DatasetID:  id,
			Command:    cmd.Type,
			Revision:   res.Revision,
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			svc.logger.Printf("publish state changed event: %v", err)
		}
	}
	return res, nil
}
