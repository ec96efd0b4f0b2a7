package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

var ErrNotFound = errors.New("actor not indexed")

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// Actor is one indexed registration. Address is stored lowercased so lookups
// are casing-independent; the display form keeps the original checksum.
type Actor struct {
	Address        string    `json:"address"`
	DisplayAddress string    `json:"display_address"`
	Name           string    `json:"name"`
	Role           int16     `json:"role"`
	Location       string    `json:"location"`
	IsActive       bool      `json:"is_active"`
	ApprovalStatus int16     `json:"approval_status"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func FromLedger(a ledger.Actor) Actor {
	return Actor{
		Address:        strings.ToLower(a.Address),
		DisplayAddress: a.Address,
		Name:           a.Name,
		Role:           int16(a.Role),
		Location:       a.Location,
		IsActive:       a.IsActive,
		ApprovalStatus: int16(a.ApprovalStatus),
	}
}

// EnsureSchema creates the index table when missing. The registry is a
// rebuildable cache of chain state, so there is no migration history to keep.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS actors(
			address TEXT PRIMARY KEY,
			display_address TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			role SMALLINT NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT false,
			approval_status SMALLINT NOT NULL DEFAULT 0,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *Store) Upsert(ctx context.Context, a Actor) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO actors(address,display_address,name,role,location,is_active,approval_status,first_seen_at,updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (address) DO UPDATE SET
			display_address=EXCLUDED.display_address,
			name=EXCLUDED.name,
			role=EXCLUDED.role,
			location=EXCLUDED.location,
			is_active=EXCLUDED.is_active,
			approval_status=EXCLUDED.approval_status,
			updated_at=now()`,
		a.Address, a.DisplayAddress, a.Name, a.Role, a.Location, a.IsActive, a.ApprovalStatus)
	return err
}

func (s *Store) Get(ctx context.Context, address string) (Actor, error) {
	var a Actor
	err := s.DB.QueryRow(ctx, `
		SELECT address,display_address,name,role,location,is_active,approval_status,first_seen_at,updated_at
		FROM actors WHERE address=$1`, strings.ToLower(address)).
		Scan(&a.Address, &a.DisplayAddress, &a.Name, &a.Role, &a.Location, &a.IsActive, &a.ApprovalStatus, &a.FirstSeenAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Actor{}, ErrNotFound
	}
	return a, err
}

// List returns indexed actors, newest registration first. status < 0 means no
// filter.
func (s *Store) List(ctx context.Context, status int16) ([]Actor, error) {
	q := `SELECT address,display_address,name,role,location,is_active,approval_status,first_seen_at,updated_at
		FROM actors`
	args := []any{}
	if status >= 0 {
		q += ` WHERE approval_status=$1`
		args = append(args, status)
	}
	q += ` ORDER BY first_seen_at DESC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	out := []Actor{}
	for rows.Next() {
		var a Actor
		if err := rows.Scan(&a.Address, &a.DisplayAddress, &a.Name, &a.Role, &a.Location, &a.IsActive, &a.ApprovalStatus, &a.FirstSeenAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ParseStatusFilter maps the query-string filter onto an approval status.
// Empty means no filter.
func ParseStatusFilter(v string) (int16, error) {
	switch strings.ToLower(v) {
	case "":
		return -1, nil
	case "pending":
		return int16(ledger.ApprovalPending), nil
	case "approved":
		return int16(ledger.ApprovalApproved), nil
	case "rejected":
		return int16(ledger.ApprovalRejected), nil
	}
	return 0, fmt.Errorf("unknown status filter %q", v)
}
