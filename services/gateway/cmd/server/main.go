package main

import (
	"context"
	"math/big"
	"net/http"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/access"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/config"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/wallet"
	"github.com/Fetrelo/safe-delivery-tfm/services/gateway/internal/registryclient"
)

func main() {
	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()
	log = log.Named("gateway")

	cfg := config.Load()

	caller, err := ledger.NewEthCaller(cfg.RPCURL, cfg.ContractAddress)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	reader := ledger.NewReader(caller, ledger.WithTimeout(cfg.CallTimeout))

	var writer *ledger.Writer
	if cfg.GatewayKeyPath != "" {
		key, err := wallet.ReadKeyFile(cfg.GatewayKeyPath)
		if err != nil {
			log.Fatal("gateway key", zap.Error(err))
		}
		submitter, err := ledger.NewEthSubmitter(caller, key, big.NewInt(cfg.ChainID))
		if err != nil {
			log.Fatal("submitter", zap.Error(err))
		}
		writer = ledger.NewWriter(submitter)
	}

	accessCfg := access.DefaultConfig()
	a := &api{
		log:      log,
		reader:   reader,
		writer:   writer,
		resolver: access.NewResolver(reader, log, accessCfg),
		session:  wallet.NewSession(),
		registry: registryclient.New(cfg.RegistryURL),
		cfg:      accessCfg,
	}

	go a.watchSession(context.Background())

	log.Info("listening", zap.String("port", cfg.GatewayPort))
	if err := http.ListenAndServe(":"+cfg.GatewayPort, a.router()); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
