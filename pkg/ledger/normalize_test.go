package ledger

import (
	"encoding/json"
	"math/big"
	"reflect"
	"testing"
)

func namedShipment() map[string]any {
	return map[string]any{
		"id":                    big.NewInt(7),
		"sender":                "0x1111111111111111111111111111111111111111",
		"recipient":             "0x2222222222222222222222222222222222222222",
		"product":               "vaccines",
		"origin":                "Valencia",
		"destination":           "Oslo",
		"dateCreated":           big.NewInt(1700000000),
		"dateEstimatedDelivery": big.NewInt(1700600000),
		"dateDelivered":         big.NewInt(0),
		"status":                uint8(1),
		"checkpointIds":         []any{big.NewInt(3), big.NewInt(4)},
		"incidentIds":           []any{},
		"requiresColdChain":     true,
		"minTemperature":        big.NewInt(20),
		"maxTemperature":        big.NewInt(80),
	}
}

func positionalShipment() []any {
	n := namedShipment()
	return []any{
		n["id"], n["sender"], n["recipient"], n["product"], n["origin"],
		n["destination"], n["dateCreated"], n["dateEstimatedDelivery"],
		n["dateDelivered"], n["status"], n["checkpointIds"], n["incidentIds"],
		n["requiresColdChain"], n["minTemperature"], n["maxTemperature"],
	}
}

func TestNormalizeShipmentShapeInvariant(t *testing.T) {
	fromNamed := normalizeShipment(namedShipment())
	fromTuple := normalizeShipment(positionalShipment())

	if !reflect.DeepEqual(fromNamed, fromTuple) {
		t.Fatalf("named and positional decode diverged:\n%+v\n%+v", fromNamed, fromTuple)
	}
	jn, err := json.Marshal(fromNamed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	jt, err := json.Marshal(fromTuple)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(jn) != string(jt) {
		t.Fatalf("serialized forms differ:\n%s\n%s", jn, jt)
	}
	if fromNamed.ID != 7 || fromNamed.Status != StatusInTransit || !fromNamed.RequiresColdChain {
		t.Fatalf("unexpected shipment: %+v", fromNamed)
	}
	if len(fromNamed.CheckpointIDs) != 2 || fromNamed.CheckpointIDs[1] != 4 {
		t.Fatalf("unexpected checkpoint ids: %v", fromNamed.CheckpointIDs)
	}
}

func TestNormalizeActorFromDecoderStruct(t *testing.T) {
	// The ABI decoder hands back reflection-built structs for tuple returns.
	rec := struct {
		ActorAddress   string
		Name           string
		Role           uint8
		Location       string
		IsActive       bool
		ApprovalStatus uint8
	}{
		ActorAddress:   "0x3333333333333333333333333333333333333333",
		Name:           "Nordic Carrier",
		Role:           uint8(RoleCarrier),
		Location:       "Bergen",
		IsActive:       true,
		ApprovalStatus: uint8(ApprovalApproved),
	}
	a := normalizeActor(rec)
	if a.Name != "Nordic Carrier" || a.Role != RoleCarrier || !a.Registered() {
		t.Fatalf("unexpected actor: %+v", a)
	}
}

func TestNormalizeMissingFieldsDefault(t *testing.T) {
	c := normalizeCheckpoint(map[string]any{"id": int64(2)})
	if c.ID != 2 {
		t.Fatalf("id = %d", c.ID)
	}
	if c.Location != "" || c.Temperature != 0 || c.HasDamage {
		t.Fatalf("missing fields did not default: %+v", c)
	}
	s := normalizeShipment(nil)
	if s.ID != 0 {
		t.Fatalf("nil record should normalize to zero shipment, got %+v", s)
	}
	if s.CheckpointIDs == nil || len(s.CheckpointIDs) != 0 {
		t.Fatalf("id list should default to empty, got %#v", s.CheckpointIDs)
	}
}

func TestAsInt64Coercions(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{big.NewInt(42), 42},
		{int64(-3), -3},
		{uint8(6), 6},
		{float64(11), 11},
		{json.Number("19"), 19},
		{"27", 27},
		{nil, 0},
		{"not a number", 0},
	}
	for _, c := range cases {
		if got := asInt64(c.in); got != c.want {
			t.Fatalf("asInt64(%#v) = %d, want %d", c.in, got, c.want)
		}
	}
}
