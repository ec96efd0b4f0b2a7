// Package worker records automated sensor checkpoints for shipments that have
// gone quiet in transit. A Report checkpoint annotates without advancing the
// shipment, so the sweep is safe to repeat.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

type Ledger interface {
	GetActor(ctx context.Context, address string) (ledger.Actor, error)
	GetAllShipments(ctx context.Context, limit int) ([]ledger.Shipment, error)
	GetShipmentCheckpoints(ctx context.Context, shipmentID int64) ([]ledger.Checkpoint, error)
}

type Worker struct {
	reader    Ledger
	writer    *ledger.Writer
	account   string
	threshold time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func New(reader Ledger, writer *ledger.Writer, account string, threshold time.Duration, log *zap.Logger) *Worker {
	return &Worker{
		reader:    reader,
		writer:    writer,
		account:   account,
		threshold: threshold,
		log:       log,
		now:       time.Now,
	}
}

// Run sweeps on the interval until the context ends.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.Sweep(ctx); err != nil {
			w.log.Warn("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep records a Report checkpoint on every moving shipment whose latest
// checkpoint is older than the threshold. Returns how many were recorded.
// Per-shipment failures are logged and skipped; the sweep itself only fails
// when the enumeration does.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	actor, err := w.reader.GetActor(ctx, w.account)
	if err != nil {
		return 0, fmt.Errorf("sensor actor: %w", err)
	}
	if !actor.Registered() || actor.Role != ledger.RoleSensor {
		w.log.Warn("sensor actor not approved, skipping sweep",
			zap.String("account", w.account),
			zap.String("approval", actor.ApprovalStatus.String()),
			zap.String("role", actor.Role.String()))
		return 0, nil
	}

	shipments, err := w.reader.GetAllShipments(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("enumerate shipments: %w", err)
	}

	recorded := 0
	for _, s := range shipments {
		if s.Status != ledger.StatusInTransit && s.Status != ledger.StatusOutForDelivery {
			continue
		}
		wrote, err := w.sweepShipment(ctx, s)
		if err != nil {
			w.log.Warn("shipment sweep failed",
				zap.Int64("shipment_id", s.ID),
				zap.Error(err))
			continue
		}
		if wrote {
			recorded++
		}
	}
	return recorded, nil
}

func (w *Worker) sweepShipment(ctx context.Context, s ledger.Shipment) (bool, error) {
	cps, err := w.reader.GetShipmentCheckpoints(ctx, s.ID)
	if err != nil {
		return false, err
	}

	lastAt := s.DateCreated
	var last *ledger.Checkpoint
	for i := range cps {
		if cps[i].Timestamp >= lastAt {
			lastAt = cps[i].Timestamp
			last = &cps[i]
		}
	}
	if w.now().Unix()-lastAt < int64(w.threshold/time.Second) {
		return false, nil
	}

	req := ledger.RecordCheckpointRequest{
		ShipmentID: s.ID,
		Location:   s.Origin,
		Type:       access.CheckpointReport,
		Notes:      "automated sensor reading",
	}
	if last != nil {
		// Carry the last known position and reading forward.
		req.Location = last.Location
		req.Latitude = last.Latitude
		req.Longitude = last.Longitude
		req.Temperature = last.Temperature
	}
	if err := w.writer.RecordCheckpoint(ctx, req); err != nil {
		return false, err
	}
	w.log.Info("recorded sensor checkpoint",
		zap.Int64("shipment_id", s.ID),
		zap.String("location", req.Location))
	return true, nil
}
