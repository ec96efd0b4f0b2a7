package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Caller abstracts the contract binding. Implementations must return a value
// that normalizes per normalize.go (named map or positional tuple) and must
// classify their failures: ErrRecordNotFound for calls the contract reverted
// because the id does not resolve, ErrLedgerUnavailable (or any other error,
// which the Reader wraps as such) for transport failures.
type Caller interface {
	Call(ctx context.Context, method string, args ...any) (any, error)

	// RegistrationLog returns every address that ever appeared in the
	// ActorRegistered event log, genesis to tip, in log order. Cost scales
	// with chain history, not record count.
	RegistrationLog(ctx context.Context) ([]string, error)
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Reader fetches raw contract records and normalizes them into stable shapes.
// Every call is a suspend point: it may take arbitrarily long up to the
// configured timeout, after which it fails with ErrLedgerUnavailable.
type Reader struct {
	caller      Caller
	timeout     time.Duration
	retry       RetryConfig
	concurrency int
}

type ReaderOption func(*Reader)

func WithTimeout(d time.Duration) ReaderOption {
	return func(r *Reader) { r.timeout = d }
}

func WithRetry(cfg RetryConfig) ReaderOption {
	return func(r *Reader) { r.retry = cfg }
}

func WithConcurrency(n int) ReaderOption {
	return func(r *Reader) { r.concurrency = n }
}

func NewReader(c Caller, opts ...ReaderOption) *Reader {
	r := &Reader{
		caller:      c,
		timeout:     15 * time.Second,
		retry:       RetryConfig{MaxAttempts: 2, BaseDelay: 200 * time.Millisecond},
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retry.MaxAttempts < 1 {
		r.retry.MaxAttempts = 1
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

func (r *Reader) call(ctx context.Context, method string, args ...any) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		v, err := r.caller.Call(cctx, method, args...)
		cancel()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		if !errors.Is(err, ErrLedgerUnavailable) {
			err = fmt.Errorf("%w: %s: %v", ErrLedgerUnavailable, method, err)
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt < r.retry.MaxAttempts {
			select {
			case <-time.After(r.retry.BaseDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

func (r *Reader) GetActor(ctx context.Context, address string) (Actor, error) {
	v, err := r.call(ctx, "getActor", address)
	if err != nil {
		return Actor{}, err
	}
	return normalizeActor(v), nil
}

func (r *Reader) GetShipment(ctx context.Context, id int64) (Shipment, error) {
	v, err := r.call(ctx, "getShipment", id)
	if err != nil {
		return Shipment{}, err
	}
	s := normalizeShipment(v)
	if s.ID == 0 {
		return Shipment{}, fmt.Errorf("%w: shipment %d", ErrRecordNotFound, id)
	}
	return s, nil
}

func (r *Reader) GetCheckpoint(ctx context.Context, id int64) (Checkpoint, error) {
	v, err := r.call(ctx, "getCheckpoint", id)
	if err != nil {
		return Checkpoint{}, err
	}
	c := normalizeCheckpoint(v)
	if c.ID == 0 {
		return Checkpoint{}, fmt.Errorf("%w: checkpoint %d", ErrRecordNotFound, id)
	}
	return c, nil
}

func (r *Reader) GetIncident(ctx context.Context, id int64) (Incident, error) {
	v, err := r.call(ctx, "getIncident", id)
	if err != nil {
		return Incident{}, err
	}
	in := normalizeIncident(v)
	if in.ID == 0 {
		return Incident{}, fmt.Errorf("%w: incident %d", ErrRecordNotFound, id)
	}
	return in, nil
}

func (r *Reader) GetShipmentCheckpoints(ctx context.Context, shipmentID int64) ([]Checkpoint, error) {
	v, err := r.call(ctx, "getShipmentCheckpoints", shipmentID)
	if err != nil {
		return nil, err
	}
	items := newRawRecord(v).tuple
	out := make([]Checkpoint, len(items))
	for i := range items {
		out[i] = normalizeCheckpoint(items[i])
	}
	return out, nil
}

func (r *Reader) GetShipmentIncidents(ctx context.Context, shipmentID int64) ([]Incident, error) {
	v, err := r.call(ctx, "getShipmentIncidents", shipmentID)
	if err != nil {
		return nil, err
	}
	items := newRawRecord(v).tuple
	out := make([]Incident, len(items))
	for i := range items {
		out[i] = normalizeIncident(items[i])
	}
	return out, nil
}

func (r *Reader) GetActorShipments(ctx context.Context, address string) ([]int64, error) {
	v, err := r.call(ctx, "getActorShipments", address)
	if err != nil {
		return nil, err
	}
	return asInt64Slice(v), nil
}

func (r *Reader) NextShipmentID(ctx context.Context) (int64, error) {
	v, err := r.call(ctx, "nextShipmentId")
	if err != nil {
		return 0, err
	}
	return asInt64(v), nil
}

func (r *Reader) AdminAddress(ctx context.Context) (string, error) {
	v, err := r.call(ctx, "admin")
	if err != nil {
		return "", err
	}
	return asString(v), nil
}

// IsAdmin compares case-insensitively: wallet and node do not agree on
// address checksum casing.
func (r *Reader) IsAdmin(ctx context.Context, address string) (bool, error) {
	admin, err := r.AdminAddress(ctx)
	if err != nil {
		return false, err
	}
	return admin != "" && strings.EqualFold(admin, address), nil
}

func (r *Reader) ContractInfo(ctx context.Context) (ContractInfo, error) {
	info := ContractInfo{}
	admin, err := r.AdminAddress(ctx)
	if err != nil {
		return info, err
	}
	info.Admin = admin
	for _, f := range []struct {
		method string
		dst    *int64
	}{
		{"nextShipmentId", &info.NextShipmentID},
		{"nextCheckpointId", &info.NextCheckpointID},
		{"nextIncidentId", &info.NextIncidentID},
	} {
		v, err := r.call(ctx, f.method)
		if err != nil {
			return ContractInfo{}, err
		}
		*f.dst = asInt64(v)
	}
	return info, nil
}

// GetAllShipments probes ids 1..nextShipmentId-1. The ledger has no native
// list primitive, so the contiguous id space is probed individually; an id
// that fails to resolve (a gap from a cancelled allocation) is skipped, not
// fatal. limit <= 0 means no limit.
func (r *Reader) GetAllShipments(ctx context.Context, limit int) ([]Shipment, error) {
	next, err := r.NextShipmentID(ctx)
	if err != nil {
		return nil, err
	}
	count := next - 1
	if count < 0 {
		count = 0
	}
	if limit > 0 && int64(limit) < count {
		count = int64(limit)
	}

	slots := make([]*Shipment, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := int64(0); i < count; i++ {
		i := i
		g.Go(func() error {
			s, err := r.GetShipment(gctx, i+1)
			if err != nil {
				if errors.Is(err, ErrRecordNotFound) {
					return nil
				}
				return err
			}
			slots[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Shipment, 0, count)
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// GetAllActors resolves every address seen in the registration event log.
// This is the one operation whose cost scales with total chain history; it is
// slow on long chains and callers should treat it accordingly. Addresses are
// deduplicated before resolving: an address that re-registered appears in the
// log more than once.
func (r *Reader) GetAllActors(ctx context.Context) ([]Actor, error) {
	addrs, err := r.caller.RegistrationLog(ctx)
	if err != nil {
		if !errors.Is(err, ErrLedgerUnavailable) {
			err = fmt.Errorf("%w: registration log: %v", ErrLedgerUnavailable, err)
		}
		return nil, err
	}
	seen := make(map[string]bool, len(addrs))
	out := make([]Actor, 0, len(addrs))
	for _, addr := range addrs {
		key := strings.ToLower(addr)
		if seen[key] {
			continue
		}
		seen[key] = true
		a, err := r.GetActor(ctx, addr)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		if a.Address == "" || a.Address == ZeroAddress {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
