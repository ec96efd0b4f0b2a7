package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/httpx"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"

	"go.uber.org/zap"
)

func (a *api) adminListActors(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.require(w, r, access.ActionManageActors); !ok {
		return
	}
	actors, err := a.registry.ListActors(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		httpx.WriteError(w, 502, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "actors": actors})
}

func (a *api) adminSetApproval(w http.ResponseWriter, r *http.Request, status ledger.ApprovalStatus) {
	if _, ok := a.require(w, r, access.ActionManageActors); !ok {
		return
	}
	if !a.requireWriter(w) {
		return
	}
	address := chi.URLParam(r, "address")
	if err := a.writer.SetActorApprovalStatus(r.Context(), address, status); err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	// Refresh the index so the panel reflects the decision without waiting
	// for the next scheduled rescan.
	if err := a.registry.Rescan(r.Context()); err != nil {
		a.log.Warn("registry rescan after approval", zap.Error(err))
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"address":    address,
		"status":     status.String(),
	})
}

func (a *api) adminApprove(w http.ResponseWriter, r *http.Request) {
	a.adminSetApproval(w, r, ledger.ApprovalApproved)
}

func (a *api) adminReject(w http.ResponseWriter, r *http.Request) {
	a.adminSetApproval(w, r, ledger.ApprovalRejected)
}
