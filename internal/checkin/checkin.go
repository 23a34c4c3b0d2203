// Package checkin implements the venue scan flow: resolve a scanned code, warn on re-scans,
// and admit or release through the registration lifecycle.
package checkin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/metrics"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

// CodeLookup resolves a scanned QR code.
type CodeLookup interface {
	GetByQRCode(ctx context.Context, code string) (*models.Registration, error)
}

// Gate performs the admit and exit transitions.
type Gate interface {
	CheckIn(ctx context.Context, id, verifierID uuid.UUID) (*models.CheckInRecord, error)
	CheckOut(ctx context.Context, id, verifierID uuid.UUID) (*models.CheckInRecord, error)
}

// ScanResult is the verdict shown to the verifier. AlreadyCheckedIn is a warning, not a failure.
type ScanResult struct {
	Registration     *models.Registration `json:"registration"`
	AlreadyCheckedIn bool                 `json:"already_checked_in"`
}

// Protocol is the check-in flow.
type Protocol struct {
	codes  CodeLookup
	gate   Gate
	logger *zap.Logger
}

// NewProtocol creates the check-in flow.
func NewProtocol(codes CodeLookup, gate Gate, logger *zap.Logger) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{codes: codes, gate: gate, logger: logger}
}

// VerifyScan resolves code to its registration without changing anything.
func (p *Protocol) VerifyScan(ctx context.Context, code string) (*ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		metrics.Scans.WithLabelValues("not_found").Inc()
		return nil, apperr.ErrNotFound
	}
	reg, err := p.codes.GetByQRCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.Scans.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}
	res := &ScanResult{Registration: reg, AlreadyCheckedIn: reg.Status == models.StatusCheckedIn}
	if res.AlreadyCheckedIn {
		metrics.Scans.WithLabelValues("already_checked_in").Inc()
	} else {
		metrics.Scans.WithLabelValues("valid").Inc()
	}
	return res, nil
}

// CheckIn admits the registration.
func (p *Protocol) CheckIn(ctx context.Context, registrationID, verifierID uuid.UUID) (*models.CheckInRecord, error) {
	return p.gate.CheckIn(ctx, registrationID, verifierID)
}

// CheckOut records the attendee leaving.
func (p *Protocol) CheckOut(ctx context.Context, registrationID, verifierID uuid.UUID) (*models.CheckInRecord, error) {
	return p.gate.CheckOut(ctx, registrationID, verifierID)
}
