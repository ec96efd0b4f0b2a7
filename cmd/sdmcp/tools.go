package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

// node is the chain-level slice of the diagnostics surface: raw contract
// calls, decoded event logs, and node reads that bypass the reader.
type node interface {
	Call(ctx context.Context, method string, args ...any) (any, error)
	ContractEvents(ctx context.Context, event string, fromBlock, toBlock int64) ([]map[string]any, error)
	Balance(ctx context.Context, account string) (string, error)
	BlockInfo(ctx context.Context, number int64) (map[string]any, error)
	Transaction(ctx context.Context, hash string) (map[string]any, error)
	TransactionReceipt(ctx context.Context, hash string) (map[string]any, error)
}

func schema(s string) json.RawMessage { return json.RawMessage(s) }

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string, def int64) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case string:
		var n int64
		_, _ = fmt.Sscanf(v, "%d", &n)
		return n
	}
	return def
}

func isoTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func formatShipment(s ledger.Shipment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shipment #%d [%s]\n", s.ID, s.Status)
	fmt.Fprintf(&b, "  Product: %s\n", s.Product)
	fmt.Fprintf(&b, "  Route: %s -> %s\n", s.Origin, s.Destination)
	fmt.Fprintf(&b, "  Sender: %s\n  Recipient: %s\n", s.Sender, s.Recipient)
	fmt.Fprintf(&b, "  Created: %s  ETA: %s  Delivered: %s\n",
		isoTime(s.DateCreated), isoTime(s.DateEstimatedDelivery), isoTime(s.DateDelivered))
	if s.RequiresColdChain {
		fmt.Fprintf(&b, "  Cold chain: %.1f°C to %.1f°C\n",
			ledger.DecodeTemperature(s.MinTemperature), ledger.DecodeTemperature(s.MaxTemperature))
	}
	fmt.Fprintf(&b, "  Checkpoints: %d  Incidents: %d", len(s.CheckpointIDs), len(s.IncidentIDs))
	return b.String()
}

func formatCheckpoint(c ledger.Checkpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checkpoint #%d (shipment #%d) [%s]\n", c.ID, c.ShipmentID, c.Type)
	fmt.Fprintf(&b, "  Location: %s\n", c.Location)
	fmt.Fprintf(&b, "  At: %s by %s\n", isoTime(c.Timestamp), c.Actor)
	fmt.Fprintf(&b, "  Temperature: %.1f°C  Position: %.6f, %.6f\n",
		ledger.DecodeTemperature(c.Temperature),
		ledger.DecodeCoordinate(c.Latitude), ledger.DecodeCoordinate(c.Longitude))
	if c.HasDamage {
		b.WriteString("  DAMAGE REPORTED\n")
	}
	if c.Notes != "" {
		fmt.Fprintf(&b, "  Notes: %s", c.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatActor(a ledger.Actor) string {
	return fmt.Sprintf("Actor %s\n  Name: %s\n  Role: %s\n  Location: %s\n  Approval: %s\n  Active: %v\n  Registered: %v",
		a.Address, a.Name, a.Role, a.Location, a.ApprovalStatus, a.IsActive, a.Registered())
}

func formatIncident(in ledger.Incident) string {
	resolved := "open"
	if in.Resolved {
		resolved = "resolved"
	}
	return fmt.Sprintf("Incident #%d (shipment #%d) [%s, %s]\n  Reporter: %s\n  At: %s\n  %s",
		in.ID, in.ShipmentID, in.Type, resolved, in.Reporter, isoTime(in.Timestamp), in.Description)
}

func ledgerTools(reader *ledger.Reader, nd node) []tool {
	return []tool{
		{
			Name:        "get_contract_info",
			Description: "Get basic contract information (admin, next IDs)",
			InputSchema: schema(`{"type":"object","properties":{}}`),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				info, err := reader.ContractInfo(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Admin: %s\nShipments: %d\nCheckpoints: %d\nIncidents: %d",
					info.Admin, info.NextShipmentID-1, info.NextCheckpointID-1, info.NextIncidentID-1), nil
			},
		},
		{
			Name:        "get_shipment",
			Description: "Get shipment details by ID",
			InputSchema: schema(`{"type":"object","properties":{"shipment_id":{"type":"number"}},"required":["shipment_id"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				s, err := reader.GetShipment(ctx, argInt(args, "shipment_id", 0))
				if err != nil {
					return "", err
				}
				return formatShipment(s), nil
			},
		},
		{
			Name:        "get_all_shipments",
			Description: "Get all shipments (ids that fail to resolve are skipped)",
			InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"number","description":"maximum shipments to return (default 50)"}}}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				limit := int(argInt(args, "limit", 50))
				shipments, err := reader.GetAllShipments(ctx, limit)
				if err != nil {
					return "", err
				}
				if len(shipments) == 0 {
					return "No shipments found.", nil
				}
				parts := make([]string, len(shipments))
				for i, s := range shipments {
					parts[i] = formatShipment(s)
				}
				return strings.Join(parts, "\n\n"), nil
			},
		},
		{
			Name:        "get_checkpoint",
			Description: "Get checkpoint details by ID",
			InputSchema: schema(`{"type":"object","properties":{"checkpoint_id":{"type":"number"}},"required":["checkpoint_id"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				c, err := reader.GetCheckpoint(ctx, argInt(args, "checkpoint_id", 0))
				if err != nil {
					return "", err
				}
				return formatCheckpoint(c), nil
			},
		},
		{
			Name:        "get_actor",
			Description: "Get actor registration details by address",
			InputSchema: schema(`{"type":"object","properties":{"address":{"type":"string"}},"required":["address"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				a, err := reader.GetActor(ctx, argString(args, "address"))
				if err != nil {
					return "", err
				}
				if a.Address == "" || a.Address == ledger.ZeroAddress {
					return "", fmt.Errorf("no actor registered at %s", argString(args, "address"))
				}
				return formatActor(a), nil
			},
		},
		{
			Name:        "get_incident",
			Description: "Get incident details by ID",
			InputSchema: schema(`{"type":"object","properties":{"incident_id":{"type":"number"}},"required":["incident_id"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := reader.GetIncident(ctx, argInt(args, "incident_id", 0))
				if err != nil {
					return "", err
				}
				return formatIncident(in), nil
			},
		},
		{
			Name:        "get_balance",
			Description: "Get the native balance of an address in wei",
			InputSchema: schema(`{"type":"object","properties":{"address":{"type":"string"}},"required":["address"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				bal, err := nd.Balance(ctx, argString(args, "address"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Balance of %s: %s wei", argString(args, "address"), bal), nil
			},
		},
		{
			Name:        "get_block_info",
			Description: "Get block details (latest when block_number is omitted)",
			InputSchema: schema(`{"type":"object","properties":{"block_number":{"type":"number"}}}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				blk, err := nd.BlockInfo(ctx, argInt(args, "block_number", -1))
				if err != nil {
					return "", err
				}
				return jsonText(blk)
			},
		},
		{
			Name:        "get_transaction",
			Description: "Get transaction details by hash",
			InputSchema: schema(`{"type":"object","properties":{"hash":{"type":"string"}},"required":["hash"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				tx, err := nd.Transaction(ctx, argString(args, "hash"))
				if err != nil {
					return "", err
				}
				return jsonText(tx)
			},
		},
		{
			Name:        "get_transaction_receipt",
			Description: "Get transaction receipt by hash",
			InputSchema: schema(`{"type":"object","properties":{"hash":{"type":"string"}},"required":["hash"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				rcpt, err := nd.TransactionReceipt(ctx, argString(args, "hash"))
				if err != nil {
					return "", err
				}
				return jsonText(rcpt)
			},
		},
		{
			Name:        "query_contract_function",
			Description: "Call any read-only contract function",
			InputSchema: schema(`{"type":"object","properties":{"function_name":{"type":"string"},"args":{"type":"array","items":{}}},"required":["function_name"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				fn := argString(args, "function_name")
				if fn == "" {
					return "", fmt.Errorf("function_name is required")
				}
				callArgs, _ := args["args"].([]any)
				result, err := nd.Call(ctx, fn, callArgs...)
				if err != nil {
					return "", err
				}
				return jsonText(map[string]any{"function": fn, "args": callArgs, "result": result})
			},
		},
		{
			Name:        "get_contract_events",
			Description: "Get contract events filtered by event name (e.g. ShipmentCreated, CheckpointRecorded)",
			InputSchema: schema(`{"type":"object","properties":{"event_name":{"type":"string"},"from_block":{"type":"number"},"to_block":{"type":"number","description":"latest when omitted"}},"required":["event_name"]}`),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				name := argString(args, "event_name")
				if name == "" {
					return "", fmt.Errorf("event_name is required")
				}
				events, err := nd.ContractEvents(ctx, name, argInt(args, "from_block", 0), argInt(args, "to_block", -1))
				if err != nil {
					return "", err
				}
				return jsonText(map[string]any{"event_name": name, "count": len(events), "events": events})
			},
		},
	}
}

func jsonText(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
