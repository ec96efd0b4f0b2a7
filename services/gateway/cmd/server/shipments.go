package main

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/httpx"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

func shipmentPayload(s ledger.Shipment) map[string]any {
	p := map[string]any{
		"record":       s,
		"status_label": s.Status.String(),
		"terminal":     s.Status.Terminal(),
	}
	if s.RequiresColdChain {
		p["min_temperature_c"] = ledger.DecodeTemperature(s.MinTemperature)
		p["max_temperature_c"] = ledger.DecodeTemperature(s.MaxTemperature)
	}
	return p
}

func checkpointPayload(c ledger.Checkpoint) map[string]any {
	return map[string]any{
		"record":        c,
		"temperature_c": ledger.DecodeTemperature(c.Temperature),
		"latitude_deg":  ledger.DecodeCoordinate(c.Latitude),
		"longitude_deg": ledger.DecodeCoordinate(c.Longitude),
	}
}

func incidentPayload(in ledger.Incident) map[string]any {
	return map[string]any{
		"record":     in,
		"type_label": in.Type.String(),
	}
}

func (a *api) listShipments(w http.ResponseWriter, r *http.Request) {
	c := a.resolver.Resolve(r.Context())

	var (
		shipments []ledger.Shipment
		err       error
	)
	switch {
	case access.Can(c, access.ActionViewAll):
		shipments, err = a.reader.GetAllShipments(r.Context(), 0)
	case access.Can(c, access.ActionViewOwn):
		shipments, err = a.ownShipments(r, c.Account)
	default:
		httpx.WriteError(w, 403, "FORBIDDEN", "classification "+c.Kind.String()+" cannot list shipments", nil)
		return
	}
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}

	scope := r.URL.Query().Get("scope")
	out := make([]map[string]any, 0, len(shipments))
	for _, s := range shipments {
		switch scope {
		case "active":
			if s.Status.Terminal() {
				continue
			}
		case "completed":
			if !s.Status.Terminal() {
				continue
			}
		}
		out = append(out, shipmentPayload(s))
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "shipments": out})
}

func (a *api) ownShipments(r *http.Request, account string) ([]ledger.Shipment, error) {
	ids, err := a.reader.GetActorShipments(r.Context(), account)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Shipment, 0, len(ids))
	for _, id := range ids {
		s, err := a.reader.GetShipment(r.Context(), id)
		if err != nil {
			if err == ledger.ErrRecordNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func shipmentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (a *api) getShipment(w http.ResponseWriter, r *http.Request) {
	c := a.resolver.Resolve(r.Context())
	if !access.Can(c, access.ActionViewAll) && !access.Can(c, access.ActionViewOwn) {
		httpx.WriteError(w, 403, "FORBIDDEN", "classification "+c.Kind.String()+" cannot view shipments", nil)
		return
	}
	id, ok := shipmentID(r)
	if !ok {
		httpx.WriteError(w, 400, "BAD_JSON", "invalid shipment id", nil)
		return
	}
	s, err := a.reader.GetShipment(r.Context(), id)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	checkpoints, err := a.reader.GetShipmentCheckpoints(r.Context(), id)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	incidents, err := a.reader.GetShipmentIncidents(r.Context(), id)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}

	cps := make([]map[string]any, len(checkpoints))
	for i := range checkpoints {
		cps[i] = checkpointPayload(checkpoints[i])
	}
	ins := make([]map[string]any, len(incidents))
	for i := range incidents {
		ins[i] = incidentPayload(incidents[i])
	}
	p := shipmentPayload(s)
	p["request_id"] = httpx.NewRequestID()
	p["checkpoints"] = cps
	p["incidents"] = ins
	httpx.WriteJSON(w, 200, p)
}

func (a *api) createShipment(w http.ResponseWriter, r *http.Request) {
	_, ok := a.require(w, r, access.ActionCreateShipment)
	if !ok || !a.requireWriter(w) {
		return
	}
	var req struct {
		Recipient             string  `json:"recipient"`
		Product               string  `json:"product"`
		Origin                string  `json:"origin"`
		Destination           string  `json:"destination"`
		DateEstimatedDelivery int64   `json:"date_estimated_delivery"`
		RequiresColdChain     bool    `json:"requires_cold_chain"`
		MinTemperatureC       float64 `json:"min_temperature_c"`
		MaxTemperatureC       float64 `json:"max_temperature_c"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	err := a.writer.CreateShipment(r.Context(), ledger.CreateShipmentRequest{
		Recipient:             req.Recipient,
		Product:               req.Product,
		Origin:                req.Origin,
		Destination:           req.Destination,
		DateEstimatedDelivery: req.DateEstimatedDelivery,
		RequiresColdChain:     req.RequiresColdChain,
		MinTemperature:        ledger.EncodeTemperature(req.MinTemperatureC),
		MaxTemperature:        ledger.EncodeTemperature(req.MaxTemperatureC),
	})
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "created": true})
}

func (a *api) recordCheckpoint(w http.ResponseWriter, r *http.Request) {
	c, ok := a.require(w, r, access.ActionRecordCheckpoint)
	if !ok || !a.requireWriter(w) {
		return
	}
	id, idOK := shipmentID(r)
	if !idOK {
		httpx.WriteError(w, 400, "BAD_JSON", "invalid shipment id", nil)
		return
	}
	var req struct {
		Location     string  `json:"location"`
		Type         string  `json:"type"`
		Notes        string  `json:"notes"`
		TemperatureC float64 `json:"temperature_c"`
		LatitudeDeg  float64 `json:"latitude_deg"`
		LongitudeDeg float64 `json:"longitude_deg"`
		HasDamage    bool    `json:"has_damage"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}

	cpType := req.Type
	if cpType == "" {
		s, err := a.reader.GetShipment(r.Context(), id)
		if err != nil {
			httpx.WriteLedgerError(w, err)
			return
		}
		cpType = access.InferCheckpointType(c.Role, s.Status)
	}

	err := a.writer.RecordCheckpoint(r.Context(), ledger.RecordCheckpointRequest{
		ShipmentID:  id,
		Location:    req.Location,
		Type:        cpType,
		Notes:       req.Notes,
		Temperature: ledger.EncodeTemperature(req.TemperatureC),
		Latitude:    ledger.EncodeCoordinate(req.LatitudeDeg),
		Longitude:   ledger.EncodeCoordinate(req.LongitudeDeg),
		HasDamage:   req.HasDamage,
	})
	if err != nil {
		// No optimistic state was committed; the rejection goes back verbatim.
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id":      httpx.NewRequestID(),
		"checkpoint_type": cpType,
		"advances_status": access.AdvancesStatus(cpType),
	})
}
