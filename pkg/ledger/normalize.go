package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
)

// The contract binding does not return a stable shape: depending on the decode
// path a record arrives either as a named map or as a positional tuple. Both
// shapes are absorbed here, once, so every downstream consumer sees exactly one
// canonical record. Field extraction prefers the named property and falls back
// to the positional index.

type rawRecord struct {
	named map[string]any
	tuple []any
}

func newRawRecord(v any) rawRecord {
	switch t := v.(type) {
	case map[string]any:
		return rawRecord{named: t}
	case []any:
		return rawRecord{tuple: t}
	case nil:
		return rawRecord{}
	}
	// Typed slices ([]*big.Int etc.) from the binding still count as tuples.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return rawRecord{tuple: out}
	case reflect.Struct:
		// The ABI decoder materializes tuple returns as structs with
		// exported CamelCase field names. Treat them as the named shape,
		// keyed by the lowerCamel property name, with declaration order
		// doubling as the positional index.
		rt := rv.Type()
		named := make(map[string]any, rt.NumField())
		tuple := make([]any, 0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			named[lowerFirst(f.Name)] = rv.Field(i).Interface()
			tuple = append(tuple, rv.Field(i).Interface())
		}
		return rawRecord{named: named, tuple: tuple}
	}
	return rawRecord{}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'A' && c <= 'Z' {
		return string(c+('a'-'A')) + s[1:]
	}
	return s
}

func (r rawRecord) field(name string, idx int) any {
	if r.named != nil {
		if v, ok := r.named[name]; ok && v != nil {
			return v
		}
	}
	if idx >= 0 && idx < len(r.tuple) {
		return r.tuple[idx]
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case *big.Int:
		if t == nil {
			return 0
		}
		return t.Int64()
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asInt64Slice defaults to an empty list when the source value is not iterable.
func asInt64Slice(v any) []int64 {
	if v == nil {
		return []int64{}
	}
	if t, ok := v.([]any); ok {
		out := make([]int64, len(t))
		for i := range t {
			out[i] = asInt64(t[i])
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []int64{}
	}
	out := make([]int64, rv.Len())
	for i := range out {
		out[i] = asInt64(rv.Index(i).Interface())
	}
	return out
}

func normalizeActor(v any) Actor {
	r := newRawRecord(v)
	return Actor{
		Address:        asString(r.field("actorAddress", 0)),
		Name:           asString(r.field("name", 1)),
		Role:           ActorRole(asInt64(r.field("role", 2))),
		Location:       asString(r.field("location", 3)),
		IsActive:       asBool(r.field("isActive", 4)),
		ApprovalStatus: ApprovalStatus(asInt64(r.field("approvalStatus", 5))),
	}
}

func normalizeShipment(v any) Shipment {
	r := newRawRecord(v)
	return Shipment{
		ID:                    asInt64(r.field("id", 0)),
		Sender:                asString(r.field("sender", 1)),
		Recipient:             asString(r.field("recipient", 2)),
		Product:               asString(r.field("product", 3)),
		Origin:                asString(r.field("origin", 4)),
		Destination:           asString(r.field("destination", 5)),
		DateCreated:           asInt64(r.field("dateCreated", 6)),
		DateEstimatedDelivery: asInt64(r.field("dateEstimatedDelivery", 7)),
		DateDelivered:         asInt64(r.field("dateDelivered", 8)),
		Status:                ShipmentStatus(asInt64(r.field("status", 9))),
		CheckpointIDs:         asInt64Slice(r.field("checkpointIds", 10)),
		IncidentIDs:           asInt64Slice(r.field("incidentIds", 11)),
		RequiresColdChain:     asBool(r.field("requiresColdChain", 12)),
		MinTemperature:        asInt64(r.field("minTemperature", 13)),
		MaxTemperature:        asInt64(r.field("maxTemperature", 14)),
	}
}

func normalizeCheckpoint(v any) Checkpoint {
	r := newRawRecord(v)
	return Checkpoint{
		ID:          asInt64(r.field("id", 0)),
		ShipmentID:  asInt64(r.field("shipmentId", 1)),
		Actor:       asString(r.field("actor", 2)),
		Location:    asString(r.field("location", 3)),
		Type:        asString(r.field("checkpointType", 4)),
		Timestamp:   asInt64(r.field("timestamp", 5)),
		Notes:       asString(r.field("notes", 6)),
		Temperature: asInt64(r.field("temperature", 7)),
		Latitude:    asInt64(r.field("latitude", 8)),
		Longitude:   asInt64(r.field("longitude", 9)),
		HasDamage:   asBool(r.field("hasDamage", 10)),
	}
}

func normalizeIncident(v any) Incident {
	r := newRawRecord(v)
	return Incident{
		ID:          asInt64(r.field("id", 0)),
		ShipmentID:  asInt64(r.field("shipmentId", 1)),
		Type:        IncidentType(asInt64(r.field("incidentType", 2))),
		Reporter:    asString(r.field("reporter", 3)),
		Description: asString(r.field("description", 4)),
		Timestamp:   asInt64(r.field("timestamp", 5)),
		Resolved:    asBool(r.field("resolved", 6)),
	}
}
