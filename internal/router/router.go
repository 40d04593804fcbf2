package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LucsL0pes/mini-gymatch/internal/handlers"
	"github.com/LucsL0pes/mini-gymatch/internal/middleware"
	"github.com/LucsL0pes/mini-gymatch/internal/repository"
	"github.com/LucsL0pes/mini-gymatch/internal/services"
	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

func NewRouter(proofService services.ProofService, profiles repository.ProfileRepository, pool *pgxpool.Pool, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	// Health checks
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true,"time":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/health/db", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ok":false}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}).Methods(http.MethodGet)

	// Proof endpoints (authenticated)
	proofHandler := handlers.NewProofHandler(proofService, logger)

	proofs := r.PathPrefix("/api/proofs").Subrouter()
	proofs.Use(middleware.Auth(profiles, logger))
	proofs.HandleFunc("", proofHandler.SubmitProof).Methods(http.MethodPost)
	proofs.HandleFunc("/status", proofHandler.ProofStatus).Methods(http.MethodGet)

	return r
}
