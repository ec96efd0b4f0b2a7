package main

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/config"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/wallet"
	"github.com/Fetrelo/safe-delivery-tfm/services/sensor/internal/worker"
)

func main() {
	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()
	log = log.Named("sensor")

	cfg := config.Load()

	key, err := wallet.ReadKeyFile(cfg.SensorKeyPath)
	if err != nil {
		log.Fatal("sensor key", zap.Error(err))
	}
	caller, err := ledger.NewEthCaller(cfg.RPCURL, cfg.ContractAddress)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	submitter, err := ledger.NewEthSubmitter(caller, key, big.NewInt(cfg.ChainID))
	if err != nil {
		log.Fatal("submitter", zap.Error(err))
	}

	reader := ledger.NewReader(caller, ledger.WithTimeout(cfg.CallTimeout))
	w := worker.New(reader, ledger.NewWriter(submitter), submitter.From(), cfg.StallThreshold, log)

	log.Info("sweeping",
		zap.String("account", wallet.FormatAddress(submitter.From())),
		zap.Duration("interval", cfg.SensorInterval),
		zap.Duration("threshold", cfg.StallThreshold))
	w.Run(context.Background(), cfg.SensorInterval)
}
