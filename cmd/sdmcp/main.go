package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/config"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

const version = "1.0.0"

func main() {
	// stdout carries the protocol; logs go to stderr.
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	log, _ := logCfg.Build()
	defer func() { _ = log.Sync() }()
	log = log.Named("sdmcp")

	cfg := config.Load()
	caller, err := ledger.NewEthCaller(cfg.RPCURL, cfg.ContractAddress)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	reader := ledger.NewReader(caller, ledger.WithTimeout(cfg.CallTimeout))

	srv := newServer("safe-delivery-mcp", version, ledgerTools(reader, caller), log, os.Stdout)
	if err := srv.serve(context.Background(), os.Stdin); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
