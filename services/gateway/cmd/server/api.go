package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/httpx"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/wallet"
	"github.com/Fetrelo/safe-delivery-tfm/services/gateway/internal/registryclient"
)

type api struct {
	log      *zap.Logger
	reader   *ledger.Reader
	writer   *ledger.Writer
	resolver *access.Resolver
	session  *wallet.Session
	registry *registryclient.Client
	cfg      access.Config
}

func (a *api) router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(a.log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/api", func(root chi.Router) {
		root.Post("/session/connect", a.connect)
		root.Post("/session/switch", a.switchAccount)
		root.Post("/session/disconnect", a.disconnect)
		root.Get("/access", a.accessState)
		root.Get("/routes/guard", a.guardRoute)

		root.Get("/shipments", a.listShipments)
		root.Post("/shipments", a.createShipment)
		root.Get("/shipments/{id}", a.getShipment)
		root.Post("/shipments/{id}/checkpoints", a.recordCheckpoint)

		root.Post("/actors/register", a.registerActor)

		root.Get("/admin/actors", a.adminListActors)
		root.Post("/admin/actors/{address}/approve", a.adminApprove)
		root.Post("/admin/actors/{address}/reject", a.adminReject)
	})
	return r
}

// accessPayload is the one shape every access-dependent surface re-derives
// from: classification plus the action set and filtered menu.
func accessPayload(c access.Classification) map[string]any {
	p := map[string]any{
		"request_id":     httpx.NewRequestID(),
		"classification": c,
		"kind":           c.Kind.String(),
		"actions":        access.Actions(c),
		"menu":           access.Menu(c),
	}
	if c.Account != "" {
		p["account_short"] = wallet.FormatAddress(c.Account)
	}
	if c.Kind == access.Granted {
		p["role"] = c.Role.String()
	}
	return p
}

func (a *api) connect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if req.Account == "" {
		httpx.WriteError(w, 400, "BAD_JSON", "account is required", nil)
		return
	}
	a.session.Connect(req.Account)
	c := a.resolver.SetAccount(r.Context(), req.Account)
	httpx.WriteJSON(w, 200, accessPayload(c))
}

// switchAccount mirrors the wallet's account-change event: the session moves
// to the new account and the classification is re-derived for it. A switch on
// a disconnected session is ignored.
func (a *api) switchAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if req.Account == "" {
		httpx.WriteError(w, 400, "BAD_JSON", "account is required", nil)
		return
	}
	a.session.SwitchAccount(req.Account)
	account, connected := a.session.Account()
	if !connected {
		httpx.WriteError(w, 401, "UNAUTHORIZED", "no wallet connected", nil)
		return
	}
	c := a.resolver.SetAccount(r.Context(), account)
	httpx.WriteJSON(w, 200, accessPayload(c))
}

// watchSession feeds wallet account changes into the resolver, covering
// session mutations that do not pass through the HTTP handlers. The handlers
// still resolve synchronously for their own response; an overlapping
// resolution for the same account races harmlessly.
func (a *api) watchSession(ctx context.Context) {
	changes, cancel := a.session.AccountChanges()
	defer cancel()
	a.pumpSessionChanges(ctx, changes)
}

func (a *api) pumpSessionChanges(ctx context.Context, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case account, ok := <-changes:
			if !ok {
				return
			}
			a.resolver.SetAccount(ctx, account)
		}
	}
}

func (a *api) disconnect(w http.ResponseWriter, r *http.Request) {
	a.session.Disconnect()
	c := a.resolver.SetAccount(r.Context(), "")
	httpx.WriteJSON(w, 200, accessPayload(c))
}

func (a *api) accessState(w http.ResponseWriter, r *http.Request) {
	c := a.resolver.Resolve(r.Context())
	httpx.WriteJSON(w, 200, accessPayload(c))
}

func (a *api) guardRoute(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	if route == "" {
		httpx.WriteError(w, 400, "BAD_JSON", "route is required", nil)
		return
	}
	c := a.resolver.Resolve(r.Context())
	d := access.GuardRoute(c, a.cfg, route)
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"decision":   d,
		"kind":       c.Kind.String(),
	})
}

// require resolves the session and rejects the request unless the
// classification permits the action. Fail-closed end to end: a resolver that
// could not fetch grants nothing.
func (a *api) require(w http.ResponseWriter, r *http.Request, action access.Action) (access.Classification, bool) {
	c := a.resolver.Resolve(r.Context())
	if c.Kind == access.NoWallet || c.Kind == access.Unchecked {
		httpx.WriteError(w, 401, "UNAUTHORIZED", "no wallet connected", nil)
		return c, false
	}
	if !access.Can(c, action) {
		httpx.WriteError(w, 403, "FORBIDDEN", "classification "+c.Kind.String()+" does not permit "+string(action), nil)
		return c, false
	}
	return c, true
}

func (a *api) requireWriter(w http.ResponseWriter) bool {
	if a.writer == nil {
		httpx.WriteError(w, 503, "LEDGER_UNAVAILABLE", "no signing key configured", nil)
		return false
	}
	return true
}

func (a *api) registerActor(w http.ResponseWriter, r *http.Request) {
	c := a.resolver.Resolve(r.Context())
	switch c.Kind {
	case access.NoRecord, access.Rejected:
	case access.NoWallet, access.Unchecked:
		httpx.WriteError(w, 401, "UNAUTHORIZED", "no wallet connected", nil)
		return
	default:
		httpx.WriteError(w, 403, "FORBIDDEN", "classification "+c.Kind.String()+" cannot register", nil)
		return
	}
	if !a.requireWriter(w) {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Role     string `json:"role"`
		Location string `json:"location"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		httpx.WriteError(w, 400, "BAD_JSON", "unknown role "+req.Role, nil)
		return
	}
	if err := a.writer.RegisterActor(r.Context(), req.Name, role, req.Location); err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	// The new record is Pending until the admin decides.
	c = a.resolver.Resolve(r.Context())
	httpx.WriteJSON(w, 201, accessPayload(c))
}

func parseRole(s string) (ledger.ActorRole, bool) {
	for r := ledger.RoleSender; r <= ledger.RoleSensor; r++ {
		if r.String() == s {
			return r, true
		}
	}
	return ledger.RoleNone, false
}
