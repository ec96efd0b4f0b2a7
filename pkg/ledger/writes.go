package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Submitter sends a state-changing call signed by the session wallet and
// waits for it to be mined. A ledger rejection surfaces as ErrUnauthorized
// carrying the revert reason verbatim.
type Submitter interface {
	Submit(ctx context.Context, method string, args ...any) error
}

// Writer exposes the four transition-triggering actions the front end may
// submit. Lifecycle stays with the contract; nothing here mutates local state,
// so a failed write leaves the caller exactly where it started.
type Writer struct {
	submitter Submitter
}

func NewWriter(s Submitter) *Writer { return &Writer{submitter: s} }

func (w *Writer) submit(ctx context.Context, method string, args ...any) error {
	err := w.submitter.Submit(ctx, method, args...)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrLedgerUnavailable, method, err)
}

func (w *Writer) RegisterActor(ctx context.Context, name string, role ActorRole, location string) error {
	if name == "" || location == "" {
		return errors.New("name and location are required")
	}
	if role == RoleNone {
		return errors.New("role is required")
	}
	return w.submit(ctx, "registerActor", name, uint8(role), location)
}

func (w *Writer) SetActorApprovalStatus(ctx context.Context, address string, status ApprovalStatus) error {
	return w.submit(ctx, "setActorApprovalStatus", address, uint8(status))
}

type CreateShipmentRequest struct {
	Recipient             string
	Product               string
	Origin                string
	Destination           string
	DateEstimatedDelivery int64
	RequiresColdChain     bool
	MinTemperature        int64
	MaxTemperature        int64
}

func (w *Writer) CreateShipment(ctx context.Context, req CreateShipmentRequest) error {
	if req.Recipient == "" || req.Product == "" {
		return errors.New("recipient and product are required")
	}
	return w.submit(ctx, "createShipment",
		req.Recipient, req.Product, req.Origin, req.Destination,
		req.DateEstimatedDelivery, req.RequiresColdChain,
		req.MinTemperature, req.MaxTemperature)
}

type RecordCheckpointRequest struct {
	ShipmentID  int64
	Location    string
	Type        string
	Notes       string
	Temperature int64
	Latitude    int64
	Longitude   int64
	HasDamage   bool
}

func (w *Writer) RecordCheckpoint(ctx context.Context, req RecordCheckpointRequest) error {
	if req.ShipmentID == 0 {
		return errors.New("shipment id is required")
	}
	if req.Location == "" {
		return errors.New("location is required")
	}
	return w.submit(ctx, "recordCheckpoint",
		req.ShipmentID, req.Location, req.Type, req.Notes,
		req.Temperature, req.Latitude, req.Longitude, req.HasDamage)
}
