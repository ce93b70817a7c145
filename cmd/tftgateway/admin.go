package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/s0mar1/tftai.gg-sub000/invalidation"
	"github.com/s0mar1/tftai.gg-sub000/metric"
)

// newAdminServer serves the operational surface on a separate port:
// Prometheus metrics plus the invalidation hooks the ingestion pipeline
// calls after a dataset import.
func newAdminServer(addr string, registry *metric.MetricsRegistry,
	manager *invalidation.Manager, logger *slog.Logger) *http.Server {

	a := &adminHandlers{manager: manager, logger: logger.With("component", "admin")}

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/admin/invalidate", a.handleInvalidate)
	mux.HandleFunc("/admin/invalidations", a.handleHistory)

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type adminHandlers struct {
	manager *invalidation.Manager
	logger  *slog.Logger
}

// handleInvalidate runs one named invalidation:
//
//	POST /admin/invalidate?dataset=champions&locale=ko&by=set14-import
func (a *adminHandlers) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	dataset := r.URL.Query().Get("dataset")
	locale := r.URL.Query().Get("locale")
	triggeredBy := r.URL.Query().Get("by")
	if triggeredBy == "" {
		triggeredBy = "admin-api"
	}

	ctx := r.Context()
	var (
		removed int
		err     error
	)
	switch dataset {
	case "champions":
		removed, err = a.manager.InvalidateChampionData(ctx, locale, triggeredBy)
	case "matches":
		removed, err = a.manager.InvalidateMatchData(ctx, triggeredBy)
	case "summoners":
		removed, err = a.manager.InvalidateSummonerData(ctx, triggeredBy)
	case "decks":
		removed, err = a.manager.InvalidateDeckData(ctx, triggeredBy)
	case "static":
		removed, err = a.manager.RefreshStaticData(ctx, triggeredBy)
	case "all":
		removed, err = a.manager.InvalidateEverything(ctx, triggeredBy)
	default:
		http.Error(w, "unknown dataset: use champions, matches, summoners, decks, static or all",
			http.StatusBadRequest)
		return
	}

	// Partial failures still report what was removed; the cache drifts
	// stale in the failure window but the system keeps serving.
	status := http.StatusOK
	if err != nil {
		a.logger.Warn("invalidation partially failed", "dataset", dataset, "error", err)
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"dataset": dataset, "removed": removed})
}

// handleHistory dumps the audit ring, newest first.
func (a *adminHandlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.manager.History())
}
