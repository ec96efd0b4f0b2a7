package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/config"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

const usageText = "usage: sdctl shipment get --id <n> | sdctl shipment list [--scope active|completed] [--limit <n>] | sdctl actor get --address <addr> | sdctl access classify --account <addr> | sdctl contract info"

func main() {
	if len(os.Args) < 2 {
		fail("", usageText)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "shipment":
		runShipment(os.Args[2:])
	case "actor":
		runActor(os.Args[2:])
	case "access":
		runAccess(os.Args[2:])
	case "contract":
		runContract(os.Args[2:])
	default:
		fail("", usageText)
		os.Exit(2)
	}
}

func newFlagSet(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfg := config.Load()
	rpc := fs.String("rpc", cfg.RPCURL, "rpc url")
	contract := fs.String("contract", cfg.ContractAddress, "contract address")
	return fs, rpc, contract
}

func newReader(rpc, contract string) (*ledger.Reader, *ledger.EthCaller, error) {
	if contract == "" {
		return nil, nil, fmt.Errorf("--contract (or CONTRACT_ADDRESS) is required")
	}
	caller, err := ledger.NewEthCaller(rpc, contract)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewReader(caller), caller, nil
}

func runShipment(args []string) {
	if len(args) < 1 {
		fail("shipment", usageText)
		os.Exit(2)
	}
	switch args[0] {
	case "get":
		runShipmentGet(args[1:])
	case "list":
		runShipmentList(args[1:])
	default:
		fail("shipment", usageText)
		os.Exit(2)
	}
}

func runShipmentGet(args []string) {
	fs, rpc, contract := newFlagSet("shipment get")
	id := fs.Int64("id", 0, "shipment id")
	if err := fs.Parse(args); err != nil {
		fail("shipment", err.Error())
		os.Exit(2)
	}
	if *id <= 0 {
		fail("shipment", "--id is required")
		os.Exit(2)
	}
	reader, _, err := newReader(*rpc, *contract)
	if err != nil {
		fail("shipment", err.Error())
		os.Exit(1)
	}
	s, err := reader.GetShipment(context.Background(), *id)
	if err != nil {
		fail("shipment", err.Error())
		os.Exit(1)
	}
	pass("shipment", map[string]any{"shipment": s, "status_label": s.Status.String()})
}

func runShipmentList(args []string) {
	fs, rpc, contract := newFlagSet("shipment list")
	scope := fs.String("scope", "", "active|completed (empty for all)")
	limit := fs.Int("limit", 0, "maximum shipments (0 for all)")
	if err := fs.Parse(args); err != nil {
		fail("shipment", err.Error())
		os.Exit(2)
	}
	reader, _, err := newReader(*rpc, *contract)
	if err != nil {
		fail("shipment", err.Error())
		os.Exit(1)
	}
	shipments, err := reader.GetAllShipments(context.Background(), *limit)
	if err != nil {
		fail("shipment", err.Error())
		os.Exit(1)
	}
	out := make([]ledger.Shipment, 0, len(shipments))
	for _, s := range shipments {
		switch *scope {
		case "active":
			if s.Status.Terminal() {
				continue
			}
		case "completed":
			if !s.Status.Terminal() {
				continue
			}
		}
		out = append(out, s)
	}
	pass("shipment", map[string]any{"count": len(out), "shipments": out})
}

func runActor(args []string) {
	if len(args) < 1 || args[0] != "get" {
		fail("actor", usageText)
		os.Exit(2)
	}
	fs, rpc, contract := newFlagSet("actor get")
	address := fs.String("address", "", "actor address")
	if err := fs.Parse(args[1:]); err != nil {
		fail("actor", err.Error())
		os.Exit(2)
	}
	if *address == "" {
		fail("actor", "--address is required")
		os.Exit(2)
	}
	reader, _, err := newReader(*rpc, *contract)
	if err != nil {
		fail("actor", err.Error())
		os.Exit(1)
	}
	a, err := reader.GetActor(context.Background(), *address)
	if err != nil {
		fail("actor", err.Error())
		os.Exit(1)
	}
	pass("actor", map[string]any{
		"actor":      a,
		"role_label": a.Role.String(),
		"registered": a.Registered(),
	})
}

func runAccess(args []string) {
	if len(args) < 1 || args[0] != "classify" {
		fail("access", usageText)
		os.Exit(2)
	}
	fs, rpc, contract := newFlagSet("access classify")
	account := fs.String("account", "", "wallet account")
	if err := fs.Parse(args[1:]); err != nil {
		fail("access", err.Error())
		os.Exit(2)
	}
	reader, _, err := newReader(*rpc, *contract)
	if err != nil {
		fail("access", err.Error())
		os.Exit(1)
	}
	resolver := access.NewResolver(reader, zap.NewNop(), access.DefaultConfig())
	c := resolver.SetAccount(context.Background(), *account)
	pass("access", map[string]any{
		"kind":    c.Kind.String(),
		"actions": access.Actions(c),
		"menu":    access.Menu(c),
	})
}

func runContract(args []string) {
	if len(args) < 1 || args[0] != "info" {
		fail("contract", usageText)
		os.Exit(2)
	}
	fs, rpc, contract := newFlagSet("contract info")
	if err := fs.Parse(args[1:]); err != nil {
		fail("contract", err.Error())
		os.Exit(2)
	}
	reader, _, err := newReader(*rpc, *contract)
	if err != nil {
		fail("contract", err.Error())
		os.Exit(1)
	}
	info, err := reader.ContractInfo(context.Background())
	if err != nil {
		fail("contract", err.Error())
		os.Exit(1)
	}
	pass("contract", map[string]any{"info": info})
}

// Single-line JSON summaries so the output pipes cleanly.

func pass(kind string, fields map[string]any) {
	emit("OK", kind, fields)
}

func fail(kind, reason string) {
	emit("FAIL", kind, map[string]any{"reason": reason})
}

func emit(status, kind string, fields map[string]any) {
	out := map[string]any{
		"status":        status,
		"kind":          kind,
		"timestamp_utc": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		out[k] = v
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
