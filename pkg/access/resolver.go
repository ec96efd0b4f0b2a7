package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

// Kind is the session's access classification.
type Kind uint8

const (
	Unchecked Kind = iota
	Checking
	NoWallet
	NoRecord
	Pending
	Rejected
	Admin
	Granted // approved, active actor; Role carries which one
)

var kindNames = []string{"Unchecked", "Checking", "NoWallet", "NoRecord", "Pending", "Rejected", "Admin", "Granted"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// Classification is what a resolution produced for a given account. Actor is
// populated only for record-backed kinds (NoRecord from an inactive record,
// Pending, Rejected, Granted).
type Classification struct {
	Kind    Kind             `json:"kind"`
	Role    ledger.ActorRole `json:"role,omitempty"`
	Account string           `json:"account,omitempty"`
	Actor   *ledger.Actor    `json:"actor,omitempty"`
}

// Ledger is the slice of the reader the resolver needs.
type Ledger interface {
	GetActor(ctx context.Context, address string) (ledger.Actor, error)
	IsAdmin(ctx context.Context, address string) (bool, error)
}

// Config fixes the two policy points the classification rules leave open.
type Config struct {
	// AdminSeesRegistration admits the admin account to the registration
	// route. Off: admins have no actor record and nothing to do there.
	AdminSeesRegistration bool

	// InactiveApprovedBlocked treats an approved but deactivated record as
	// no-record. On: partial validity never grants partial access.
	InactiveApprovedBlocked bool
}

func DefaultConfig() Config {
	return Config{AdminSeesRegistration: false, InactiveApprovedBlocked: true}
}

// Resolver classifies the active wallet account and fans the result out to
// dependent surfaces. Resolutions may overlap when the account changes
// mid-flight; each one is tagged with the account and a sequence number it was
// issued for, and its result is discarded unless it is still the newest
// resolution for the still-active account at completion time. The stale side
// loses unconditionally, so there is a single logical writer.
type Resolver struct {
	reader Ledger
	log    *zap.Logger
	cfg    Config

	mu      sync.Mutex
	account string
	seq     uint64
	current Classification

	// refresh carries coalesced change signals: buffered size 1, a send
	// while one is pending is dropped. Consumers re-derive from Current.
	refresh chan struct{}
}

func NewResolver(reader Ledger, log *zap.Logger, cfg Config) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		reader:  reader,
		log:     log,
		cfg:     cfg,
		current: Classification{Kind: Unchecked},
		refresh: make(chan struct{}, 1),
	}
}

// Current returns the last committed classification.
func (r *Resolver) Current() Classification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Refresh delivers a signal after each committed change. Best-effort and
// idempotent: bursts coalesce into one pending signal.
func (r *Resolver) Refresh() <-chan struct{} {
	return r.refresh
}

// SetAccount records a wallet account change and resolves it. An empty
// account means the wallet disconnected.
func (r *Resolver) SetAccount(ctx context.Context, account string) Classification {
	r.mu.Lock()
	r.account = account
	r.mu.Unlock()
	return r.Resolve(ctx)
}

// Resolve classifies the currently-active account. Safe to call from any
// trigger (mount, account change, explicit refresh, route re-validation);
// concurrent calls race harmlessly because only the newest commits.
func (r *Resolver) Resolve(ctx context.Context) Classification {
	r.mu.Lock()
	account := r.account
	r.seq++
	seq := r.seq
	r.current = Classification{Kind: Checking, Account: account}
	r.mu.Unlock()

	c := r.classify(ctx, account)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.account != account || r.seq != seq {
		// A newer resolution was issued while this one was in flight; it owns
		// the commit. When the account itself is unchanged the computed result
		// is still correct for this caller, so serve it without committing.
		r.log.Debug("discarding stale access resolution",
			zap.String("account", account),
			zap.Uint64("seq", seq),
			zap.Uint64("newest", r.seq))
		if r.account == account {
			return c
		}
		return r.current
	}
	r.current = c
	select {
	case r.refresh <- struct{}{}:
	default:
	}
	return c
}

// classify applies the rules in strict order; the first match wins.
func (r *Resolver) classify(ctx context.Context, account string) Classification {
	if account == "" {
		return Classification{Kind: NoWallet}
	}

	isAdmin, err := r.reader.IsAdmin(ctx, account)
	if err != nil {
		return r.failClosed(account, "admin check", err)
	}
	if isAdmin {
		return Classification{Kind: Admin, Account: account}
	}

	actor, err := r.reader.GetActor(ctx, account)
	if err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return Classification{Kind: NoRecord, Account: account}
		}
		return r.failClosed(account, "actor fetch", err)
	}
	if actor.Address == "" || actor.Address == ledger.ZeroAddress {
		return Classification{Kind: NoRecord, Account: account}
	}

	switch actor.ApprovalStatus {
	case ledger.ApprovalPending:
		return Classification{Kind: Pending, Account: account, Actor: &actor}
	case ledger.ApprovalRejected:
		return Classification{Kind: Rejected, Account: account, Actor: &actor}
	}

	blocked := !actor.IsActive && r.cfg.InactiveApprovedBlocked
	if actor.ApprovalStatus == ledger.ApprovalApproved && actor.Role != ledger.RoleNone && !blocked {
		return Classification{Kind: Granted, Role: actor.Role, Account: account, Actor: &actor}
	}
	// Approved-but-inactive, role None, or an approval value the contract
	// does not define today: conservative fallback.
	return Classification{Kind: NoRecord, Account: account, Actor: &actor}
}

// failClosed never grants a privileged state on a fetch error.
func (r *Resolver) failClosed(account, stage string, err error) Classification {
	r.log.Warn("access resolution failed closed",
		zap.String("account", account),
		zap.String("stage", stage),
		zap.Error(err))
	return Classification{Kind: NoRecord, Account: account}
}
