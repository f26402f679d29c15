// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Avinash-blip/Final-AI-CoPilot/cmd/copilot-api/handlers"
	"github.com/Avinash-blip/Final-AI-CoPilot/cmd/copilot-api/middleware"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/answer"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/catalog"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/config"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/database"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/llm"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/questionbank"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/sqlgen"
)

// NewRouter wires the pipeline and returns the HTTP handler plus a cleanup
// function that closes the database.
func NewRouter(logger *observability.Logger, cfg *config.Config) (http.Handler, func(), error) {
	executor, err := database.Open(logger, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := executor.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}

	cat := catalog.NewCatalog(logger, cfg.Copilot.CatalogPath)
	knowledge := catalog.NewKnowledge(logger, cfg.Copilot.CatalogPath, cfg.Copilot.MetricsPath, cfg.Copilot.RulesPath)
	bank := questionbank.NewBank(logger, cfg.Copilot.FixturePath)
	examples := answer.NewExampleStore(logger, cfg.Copilot.ExamplesPath)

	var completer sqlgen.Completer
	if len(cfg.LLM.APIKeys) > 0 {
		completer = llm.NewClient(logger, cfg.LLM)
	} else {
		logger.Warn().Msg("No LLM API keys configured, deterministic paths only")
	}

	generator := sqlgen.NewGenerator(logger, completer, executor, cat, knowledge, cfg.Database.Table)
	service := answer.NewService(logger, bank, generator, executor, completer, examples, knowledge,
		cfg.Copilot.MatchThreshold, cfg.Copilot.ConfidenceThreshold)

	chatHandler := handlers.NewChatHandler(logger, service)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"copilot"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := executor.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)
	})

	return r, cleanup, nil
}
