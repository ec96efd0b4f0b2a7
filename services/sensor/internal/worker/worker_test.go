package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

const sensorAddr = "0x6666666666666666666666666666666666666666"

type fakeLedger struct {
	actor       ledger.Actor
	shipments   []ledger.Shipment
	checkpoints map[int64][]ledger.Checkpoint
	cpErr       error
}

func (f *fakeLedger) GetActor(context.Context, string) (ledger.Actor, error) {
	return f.actor, nil
}

func (f *fakeLedger) GetAllShipments(context.Context, int) ([]ledger.Shipment, error) {
	return f.shipments, nil
}

func (f *fakeLedger) GetShipmentCheckpoints(_ context.Context, id int64) ([]ledger.Checkpoint, error) {
	if f.cpErr != nil {
		return nil, f.cpErr
	}
	return f.checkpoints[id], nil
}

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []ledger.RecordCheckpointRequest
	args [][]any
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, method string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.args = append(r.args, args)
	r.reqs = append(r.reqs, ledger.RecordCheckpointRequest{
		ShipmentID: args[0].(int64),
		Location:   args[1].(string),
		Type:       args[2].(string),
	})
	return nil
}

func sensorActor() ledger.Actor {
	return ledger.Actor{
		Address: sensorAddr, Name: "cold-chain probe", Role: ledger.RoleSensor,
		IsActive: true, ApprovalStatus: ledger.ApprovalApproved,
	}
}

func newTestWorker(f *fakeLedger, rs *recordingSubmitter, at time.Time) *Worker {
	w := New(f, ledger.NewWriter(rs), sensorAddr, 10*time.Minute, zap.NewNop())
	w.now = func() time.Time { return at }
	return w
}

func TestSweepRecordsOnStaleShipments(t *testing.T) {
	now := time.Unix(2_000_000_000, 0)
	stale := now.Add(-30 * time.Minute).Unix()
	fresh := now.Add(-2 * time.Minute).Unix()

	f := &fakeLedger{
		actor: sensorActor(),
		shipments: []ledger.Shipment{
			{ID: 1, Status: ledger.StatusInTransit, DateCreated: stale},
			{ID: 2, Status: ledger.StatusOutForDelivery, DateCreated: stale},
			{ID: 3, Status: ledger.StatusCreated, DateCreated: stale},   // not moving
			{ID: 4, Status: ledger.StatusDelivered, DateCreated: stale}, // terminal
		},
		checkpoints: map[int64][]ledger.Checkpoint{
			1: {{ID: 10, ShipmentID: 1, Location: "A7 north", Timestamp: stale, Latitude: 40_748_817, Longitude: -73_985_428, Temperature: 42}},
			2: {{ID: 11, ShipmentID: 2, Location: "Depot", Timestamp: fresh}},
		},
	}
	rs := &recordingSubmitter{}
	w := newTestWorker(f, rs, now)

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recording, got %d", n)
	}
	req := rs.reqs[0]
	if req.ShipmentID != 1 || req.Type != "Report" {
		t.Fatalf("unexpected recording: %+v", req)
	}
	if req.Location != "A7 north" {
		t.Fatalf("last location not carried forward: %q", req.Location)
	}
}

func TestSweepSkipsUnapprovedSensor(t *testing.T) {
	a := sensorActor()
	a.ApprovalStatus = ledger.ApprovalPending
	f := &fakeLedger{
		actor:     a,
		shipments: []ledger.Shipment{{ID: 1, Status: ledger.StatusInTransit}},
	}
	rs := &recordingSubmitter{}
	w := newTestWorker(f, rs, time.Unix(2_000_000_000, 0))

	n, err := w.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("unapproved sensor must no-op: n=%d err=%v", n, err)
	}
	if len(rs.reqs) != 0 {
		t.Fatalf("recorded despite pending approval: %v", rs.reqs)
	}
}

func TestSweepWrongRoleSkips(t *testing.T) {
	a := sensorActor()
	a.Role = ledger.RoleCarrier
	f := &fakeLedger{actor: a}
	w := newTestWorker(f, &recordingSubmitter{}, time.Unix(2_000_000_000, 0))
	if n, err := w.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("wrong role must no-op: n=%d err=%v", n, err)
	}
}

func TestSweepContinuesPastShipmentFailure(t *testing.T) {
	now := time.Unix(2_000_000_000, 0)
	stale := now.Add(-time.Hour).Unix()
	f := &fakeLedger{
		actor: sensorActor(),
		shipments: []ledger.Shipment{
			{ID: 1, Status: ledger.StatusInTransit, DateCreated: stale},
			{ID: 2, Status: ledger.StatusInTransit, DateCreated: stale},
		},
		checkpoints: map[int64][]ledger.Checkpoint{},
	}
	rs := &recordingSubmitter{err: errors.New("gas spike")}
	w := newTestWorker(f, rs, now)

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("per-shipment failure must not fail the sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d", n)
	}
}

func TestNoCheckpointsUsesCreationTime(t *testing.T) {
	now := time.Unix(2_000_000_000, 0)
	f := &fakeLedger{
		actor: sensorActor(),
		shipments: []ledger.Shipment{
			{ID: 5, Status: ledger.StatusInTransit, Origin: "Valencia", DateCreated: now.Add(-20 * time.Minute).Unix()},
		},
		checkpoints: map[int64][]ledger.Checkpoint{},
	}
	rs := &recordingSubmitter{}
	w := newTestWorker(f, rs, now)

	if n, _ := w.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected recording for quiet shipment, got %d", n)
	}
	if rs.reqs[0].Location != "Valencia" {
		t.Fatalf("origin fallback: %q", rs.reqs[0].Location)
	}
}
