package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/wallet"
	"github.com/Fetrelo/safe-delivery-tfm/services/gateway/internal/registryclient"
)

const (
	adminAddr  = "0xadadadadadadadadadadadadadadadadadadadad"
	senderAddr = "0x1111111111111111111111111111111111111111"
	hubAddr    = "0x2222222222222222222222222222222222222222"
)

type fakeCaller struct {
	mu     sync.Mutex
	actors map[string]map[string]any
	next   int64
}

func (f *fakeCaller) Call(_ context.Context, method string, args ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch method {
	case "admin":
		return adminAddr, nil
	case "nextShipmentId":
		return f.next, nil
	case "getActor":
		addr := fmt.Sprintf("%v", args[0])
		if a, ok := f.actors[addr]; ok {
			return a, nil
		}
		return map[string]any{"actorAddress": ledger.ZeroAddress}, nil
	case "getShipment":
		id := args[0].(int64)
		if id >= f.next {
			return nil, fmt.Errorf("%w: shipment %d", ledger.ErrRecordNotFound, id)
		}
		status := uint8(1)
		if id == 1 {
			status = 4 // delivered
		}
		return map[string]any{
			"id": id, "sender": senderAddr, "product": fmt.Sprintf("lot-%d", id),
			"status": status, "checkpointIds": []any{}, "incidentIds": []any{},
		}, nil
	case "getShipmentCheckpoints", "getShipmentIncidents":
		return []any{}, nil
	case "getActorShipments":
		return []any{int64(1), int64(2)}, nil
	}
	return nil, fmt.Errorf("unexpected method %s", method)
}

func (f *fakeCaller) RegistrationLog(context.Context) ([]string, error) {
	return []string{senderAddr, hubAddr}, nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	methods []string
}

func (f *fakeSubmitter) Submit(_ context.Context, method string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, method)
	return nil
}

func (f *fakeSubmitter) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func actorRecord(addr string, role ledger.ActorRole, status ledger.ApprovalStatus) map[string]any {
	return map[string]any{
		"actorAddress": addr, "name": "actor", "role": uint8(role),
		"location": "x", "isActive": true, "approvalStatus": uint8(status),
	}
}

func newTestAPI(t *testing.T) (*api, *fakeSubmitter, *httptest.Server) {
	t.Helper()
	fc := &fakeCaller{
		next: 4,
		actors: map[string]map[string]any{
			senderAddr: actorRecord(senderAddr, ledger.RoleSender, ledger.ApprovalApproved),
			hubAddr:    actorRecord(hubAddr, ledger.RoleHub, ledger.ApprovalApproved),
		},
	}
	fs := &fakeSubmitter{}
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/registry/actors":
			w.Header().Set("content-type", "application/json")
			_, _ = w.Write([]byte(`{"actors":[{"address":"` + senderAddr + `","approval_status":1}]}`))
		case "/registry/rescan":
			w.WriteHeader(200)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(registry.Close)

	reader := ledger.NewReader(fc)
	cfg := access.DefaultConfig()
	a := &api{
		log:      zap.NewNop(),
		reader:   reader,
		writer:   ledger.NewWriter(fs),
		resolver: access.NewResolver(reader, zap.NewNop(), cfg),
		session:  wallet.NewSession(),
		registry: registryclient.New(registry.URL),
		cfg:      cfg,
	}
	return a, fs, registry
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func connect(t *testing.T, h http.Handler, account string) {
	t.Helper()
	rec, _ := doJSON(t, h, "POST", "/api/session/connect", map[string]any{"account": account})
	if rec.Code != 200 {
		t.Fatalf("connect returned %d: %s", rec.Code, rec.Body)
	}
}

func TestConnectClassifies(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()

	rec, out := doJSON(t, h, "POST", "/api/session/connect", map[string]any{"account": senderAddr})
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if out["kind"] != "Granted" || out["role"] != "Sender" {
		t.Fatalf("unexpected payload: %v", out)
	}
	menu, _ := json.Marshal(out["menu"])
	if !bytes.Contains(menu, []byte(access.RouteNewShipment)) {
		t.Fatalf("sender menu missing new-shipment: %s", menu)
	}
}

func TestSwitchAccountRebinds(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()

	rec, _ := doJSON(t, h, "POST", "/api/session/switch", map[string]any{"account": senderAddr})
	if rec.Code != 401 {
		t.Fatalf("switch while disconnected: %d", rec.Code)
	}

	connect(t, h, senderAddr)
	rec, out := doJSON(t, h, "POST", "/api/session/switch", map[string]any{"account": hubAddr})
	if rec.Code != 200 || out["role"] != "Hub" {
		t.Fatalf("switch: %d %v", rec.Code, out)
	}
}

func TestSessionChangesDriveResolver(t *testing.T) {
	a, _, _ := newTestAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, unsubscribe := a.session.AccountChanges()
	defer unsubscribe()
	go a.pumpSessionChanges(ctx, changes)

	refresh := a.resolver.Refresh()
	a.session.Connect(senderAddr)
	<-refresh
	if c := a.resolver.Current(); c.Kind != access.Granted || c.Account != senderAddr {
		t.Fatalf("after connect: %+v", c)
	}

	a.session.SwitchAccount(hubAddr)
	<-refresh
	if c := a.resolver.Current(); c.Role != ledger.RoleHub {
		t.Fatalf("after switch: %+v", c)
	}
}

func TestAccessWithoutWallet(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()
	_, out := doJSON(t, h, "GET", "/api/access", nil)
	if out["kind"] != "NoWallet" {
		t.Fatalf("kind = %v", out["kind"])
	}
	rec, _ := doJSON(t, h, "POST", "/api/shipments", map[string]any{"recipient": hubAddr, "product": "x"})
	if rec.Code != 401 {
		t.Fatalf("write without wallet: %d", rec.Code)
	}
}

func TestListShipmentsScopes(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()
	connect(t, h, adminAddr)

	_, out := doJSON(t, h, "GET", "/api/shipments", nil)
	all := out["shipments"].([]any)
	if len(all) != 3 {
		t.Fatalf("admin should see 3 shipments, got %d", len(all))
	}
	_, out = doJSON(t, h, "GET", "/api/shipments?scope=completed", nil)
	if got := len(out["shipments"].([]any)); got != 1 {
		t.Fatalf("completed scope: %d", got)
	}
	_, out = doJSON(t, h, "GET", "/api/shipments?scope=active", nil)
	if got := len(out["shipments"].([]any)); got != 2 {
		t.Fatalf("active scope: %d", got)
	}
}

func TestCreateShipmentRoleSplit(t *testing.T) {
	a, fs, _ := newTestAPI(t)
	h := a.router()

	connect(t, h, hubAddr)
	rec, _ := doJSON(t, h, "POST", "/api/shipments", map[string]any{"recipient": hubAddr, "product": "x"})
	if rec.Code != 403 {
		t.Fatalf("hub create shipment: %d", rec.Code)
	}

	connect(t, h, senderAddr)
	rec, _ = doJSON(t, h, "POST", "/api/shipments", map[string]any{
		"recipient": hubAddr, "product": "insulin", "requires_cold_chain": true,
		"min_temperature_c": 2.0, "max_temperature_c": 8.0,
	})
	if rec.Code != 201 {
		t.Fatalf("sender create shipment: %d %s", rec.Code, rec.Body)
	}
	if got := fs.submitted(); len(got) != 1 || got[0] != "createShipment" {
		t.Fatalf("submitted: %v", got)
	}
}

func TestRecordCheckpointInfersType(t *testing.T) {
	a, fs, _ := newTestAPI(t)
	h := a.router()
	connect(t, h, hubAddr)

	rec, out := doJSON(t, h, "POST", "/api/shipments/2/checkpoints", map[string]any{
		"location": "Hub 9", "temperature_c": 4.5,
	})
	if rec.Code != 201 {
		t.Fatalf("record checkpoint: %d %s", rec.Code, rec.Body)
	}
	// Shipment 2 is InTransit, actor is a Hub.
	if out["checkpoint_type"] != access.CheckpointHub || out["advances_status"] != true {
		t.Fatalf("unexpected inference: %v", out)
	}
	if got := fs.submitted(); len(got) != 1 || got[0] != "recordCheckpoint" {
		t.Fatalf("submitted: %v", got)
	}
}

func TestAdminPanelFlow(t *testing.T) {
	a, fs, _ := newTestAPI(t)
	h := a.router()

	connect(t, h, senderAddr)
	rec, _ := doJSON(t, h, "GET", "/api/admin/actors", nil)
	if rec.Code != 403 {
		t.Fatalf("actor reaching admin panel: %d", rec.Code)
	}

	connect(t, h, adminAddr)
	rec, out := doJSON(t, h, "GET", "/api/admin/actors?status=pending", nil)
	if rec.Code != 200 {
		t.Fatalf("admin list: %d %s", rec.Code, rec.Body)
	}
	if _, ok := out["actors"]; !ok {
		t.Fatalf("missing actors: %v", out)
	}

	rec, out = doJSON(t, h, "POST", "/api/admin/actors/"+hubAddr+"/approve", nil)
	if rec.Code != 200 || out["status"] != "Approved" {
		t.Fatalf("approve: %d %v", rec.Code, out)
	}
	if got := fs.submitted(); len(got) != 1 || got[0] != "setActorApprovalStatus" {
		t.Fatalf("submitted: %v", got)
	}
}

func TestAdminCannotCreateShipment(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()
	connect(t, h, adminAddr)
	rec, _ := doJSON(t, h, "POST", "/api/shipments", map[string]any{"recipient": hubAddr, "product": "x"})
	if rec.Code != 403 {
		t.Fatalf("admin create shipment must be forbidden, got %d", rec.Code)
	}
}

func TestGuardRouteEndpoint(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()
	connect(t, h, hubAddr)
	_, out := doJSON(t, h, "GET", "/api/routes/guard?route="+access.RouteNewShipment, nil)
	d := out["decision"].(map[string]any)
	if d["redirect_to"] != access.RouteShipments {
		t.Fatalf("hub at new-shipment: %v", d)
	}
}

func TestGetShipmentNotFound(t *testing.T) {
	a, _, _ := newTestAPI(t)
	h := a.router()
	connect(t, h, adminAddr)
	rec, _ := doJSON(t, h, "GET", "/api/shipments/99", nil)
	if rec.Code != 404 {
		t.Fatalf("missing shipment: %d", rec.Code)
	}
}
