// Package exports writes event reports to object storage and hands back short-lived download links.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/storage"
)

// CheckInLister reads an event's check-in audit trail.
type CheckInLister interface {
	ListCheckInsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.CheckInRecord, error)
}

// ObjectStore uploads a report and signs a download URL for it.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// Export describes an uploaded report.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Exporter builds reports.
type Exporter struct {
	checkIns CheckInLister
	store    ObjectStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewExporter creates a report exporter.
func NewExporter(checkIns CheckInLister, store ObjectStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{checkIns: checkIns, store: store, logger: logger, now: time.Now}
}

var checkInHeader = []string{"check_in_id", "registration_id", "attendee_email", "type", "verifier_id", "created_at"}

// CheckIns uploads the event's check-in records as CSV.
func (x *Exporter) CheckIns(ctx context.Context, eventID uuid.UUID) (*Export, error) {
	records, err := x.checkIns.ListCheckInsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(checkInHeader)
	for _, r := range records {
		verifier := ""
		if r.VerifierID != nil {
			verifier = r.VerifierID.String()
		}
		_ = w.Write([]string{
			r.ID.String(),
			r.RegistrationID.String(),
			r.AttendeeEmail,
			string(r.Type),
			verifier,
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	now := x.now()
	key := storage.ExportKey(eventID.String(), "checkins", now)
	if err := x.store.Upload(ctx, key, "text/csv", &buf); err != nil {
		return nil, err
	}
	url, err := x.store.PresignDownload(ctx, key)
	if err != nil {
		return nil, err
	}
	x.logger.Info("check-in export uploaded",
		zap.String("event_id", eventID.String()),
		zap.String("key", key),
		zap.Int("rows", len(records)),
	)
	return &Export{Key: key, URL: url, Rows: len(records), ExpiresAt: now.Add(x.store.PresignExpire())}, nil
}
