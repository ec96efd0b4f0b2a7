package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/config"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/db"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/httpx"
	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
	"github.com/Fetrelo/safe-delivery-tfm/services/registry/internal/scan"
	"github.com/Fetrelo/safe-delivery-tfm/services/registry/internal/store"
)

func main() {
	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()
	log = log.Named("registry")

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	caller, err := ledger.NewEthCaller(cfg.RPCURL, cfg.ContractAddress)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	reader := ledger.NewReader(caller, ledger.WithTimeout(cfg.CallTimeout))
	scanner := scan.New(reader, st, log)
	go scanner.Run(ctx, cfg.RescanInterval)

	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/registry", func(api chi.Router) {

		api.Get("/actors", func(w http.ResponseWriter, r *http.Request) {
			status, err := store.ParseStatusFilter(r.URL.Query().Get("status"))
			if err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			actors, err := st.List(r.Context(), status)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "actors": actors})
		})

		api.Get("/actors/{address}", func(w http.ResponseWriter, r *http.Request) {
			a, err := st.Get(r.Context(), chi.URLParam(r, "address"))
			if err != nil {
				if err == store.ErrNotFound {
					httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
					return
				}
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "actor": a})
		})

		api.Post("/rescan", func(w http.ResponseWriter, r *http.Request) {
			n, err := scanner.Rescan(r.Context())
			if err != nil {
				httpx.WriteLedgerError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "indexed": n})
		})
	})

	log.Info("listening", zap.String("port", cfg.RegistryPort))
	if err := http.ListenAndServe(":"+cfg.RegistryPort, r); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
