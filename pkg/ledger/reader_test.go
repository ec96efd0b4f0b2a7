package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeCaller scripts contract responses per method. Safe for concurrent use
// because enumeration fans calls out.
type fakeCaller struct {
	mu      sync.Mutex
	handler func(method string, args ...any) (any, error)
	log     []string
	logErr  error
	calls   int
}

func (f *fakeCaller) Call(_ context.Context, method string, args ...any) (any, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.handler(method, args...)
}

func (f *fakeCaller) RegistrationLog(context.Context) ([]string, error) {
	return f.log, f.logErr
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quickRetry() ReaderOption {
	return WithRetry(RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})
}

func TestGetShipmentZeroIDIsNotFound(t *testing.T) {
	fc := &fakeCaller{handler: func(string, ...any) (any, error) {
		return map[string]any{"id": int64(0)}, nil
	}}
	r := NewReader(fc, quickRetry())
	_, err := r.GetShipment(context.Background(), 9)
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetAllShipmentsSkipsGaps(t *testing.T) {
	fc := &fakeCaller{handler: func(method string, args ...any) (any, error) {
		switch method {
		case "nextShipmentId":
			return int64(5), nil
		case "getShipment":
			id := asInt64(args[0])
			if id == 3 {
				return nil, fmt.Errorf("%w: shipment %d", ErrRecordNotFound, id)
			}
			return map[string]any{"id": id, "product": fmt.Sprintf("lot-%d", id)}, nil
		}
		return nil, fmt.Errorf("unexpected method %s", method)
	}}
	r := NewReader(fc, quickRetry())
	got, err := r.GetAllShipments(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetAllShipments error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 shipments, got %d", len(got))
	}
	for i, want := range []int64{1, 2, 4} {
		if got[i].ID != want {
			t.Fatalf("position %d: id %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestGetAllShipmentsHonorsLimit(t *testing.T) {
	fc := &fakeCaller{handler: func(method string, args ...any) (any, error) {
		if method == "nextShipmentId" {
			return int64(100), nil
		}
		return map[string]any{"id": asInt64(args[0])}, nil
	}}
	r := NewReader(fc, quickRetry())
	got, err := r.GetAllShipments(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetAllShipments error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 shipments, got %d", len(got))
	}
}

func TestCallRetriesTransportFailures(t *testing.T) {
	attempts := 0
	fc := &fakeCaller{handler: func(string, ...any) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return int64(4), nil
	}}
	r := NewReader(fc, quickRetry())
	next, err := r.NextShipmentID(context.Background())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if next != 4 || attempts != 2 {
		t.Fatalf("next=%d attempts=%d", next, attempts)
	}
}

func TestCallDoesNotRetryNotFound(t *testing.T) {
	fc := &fakeCaller{handler: func(string, ...any) (any, error) {
		return nil, fmt.Errorf("%w: gone", ErrRecordNotFound)
	}}
	r := NewReader(fc, quickRetry())
	_, err := r.GetActor(context.Background(), "0xabc")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if fc.callCount() != 1 {
		t.Fatalf("not-found must not be retried, saw %d calls", fc.callCount())
	}
}

func TestCallWrapsUnknownErrors(t *testing.T) {
	fc := &fakeCaller{handler: func(string, ...any) (any, error) {
		return nil, errors.New("dial tcp: i/o timeout")
	}}
	r := NewReader(fc, quickRetry())
	_, err := r.AdminAddress(context.Background())
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable, got %v", err)
	}
}

func TestIsAdminCaseInsensitive(t *testing.T) {
	fc := &fakeCaller{handler: func(string, ...any) (any, error) {
		return "0xAbCdEF0123456789abcdef0123456789ABCDEF01", nil
	}}
	r := NewReader(fc, quickRetry())
	ok, err := r.IsAdmin(context.Background(), "0xabcdef0123456789abcdef0123456789abcdef01")
	if err != nil {
		t.Fatalf("IsAdmin error: %v", err)
	}
	if !ok {
		t.Fatalf("checksum casing must not affect the admin check")
	}
}

func TestGetAllActorsDeduplicatesLog(t *testing.T) {
	reRegistered := "0x4444444444444444444444444444444444444444"
	fc := &fakeCaller{
		log: []string{
			reRegistered,
			"0x5555555555555555555555555555555555555555",
			"0x4444444444444444444444444444444444444444",
			ZeroAddress,
		},
		handler: func(method string, args ...any) (any, error) {
			addr := asString(args[0])
			if addr == ZeroAddress {
				return map[string]any{"actorAddress": ZeroAddress}, nil
			}
			return map[string]any{
				"actorAddress":   addr,
				"name":           "actor " + addr[:6],
				"role":           uint8(RoleCarrier),
				"isActive":       true,
				"approvalStatus": uint8(ApprovalApproved),
			}, nil
		},
	}
	r := NewReader(fc, quickRetry())
	actors, err := r.GetAllActors(context.Background())
	if err != nil {
		t.Fatalf("GetAllActors error: %v", err)
	}
	if len(actors) != 2 {
		t.Fatalf("expected 2 actors after dedupe, got %d", len(actors))
	}
	if actors[0].Address != reRegistered {
		t.Fatalf("log order not preserved: %+v", actors)
	}
}

func TestGetAllActorsLogFailureIsUnavailable(t *testing.T) {
	fc := &fakeCaller{logErr: errors.New("node pruned")}
	r := NewReader(fc, quickRetry())
	if _, err := r.GetAllActors(context.Background()); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable, got %v", err)
	}
}

func TestContractInfoCollectsCounters(t *testing.T) {
	fc := &fakeCaller{handler: func(method string, _ ...any) (any, error) {
		switch method {
		case "admin":
			return "0x9999999999999999999999999999999999999999", nil
		case "nextShipmentId":
			return int64(12), nil
		case "nextCheckpointId":
			return int64(30), nil
		case "nextIncidentId":
			return int64(3), nil
		}
		return nil, fmt.Errorf("unexpected method %s", method)
	}}
	r := NewReader(fc, quickRetry())
	info, err := r.ContractInfo(context.Background())
	if err != nil {
		t.Fatalf("ContractInfo error: %v", err)
	}
	if info.NextShipmentID != 12 || info.NextCheckpointID != 30 || info.NextIncidentID != 3 {
		t.Fatalf("unexpected counters: %+v", info)
	}
}
