package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hrlight/shopbot/internal/config"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type SheetLister interface {
	ListSheets(ctx context.Context) ([]string, error)
}

type Syncer interface {
	SyncOnce(ctx context.Context)
}

type Dependencies struct {
	Config    config.Config
	Knowledge Pinger
	Sheets    SheetLister
	Engine    ChatEngine
	Sync      Syncer
	Webhook   http.HandlerFunc
	Logger    *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/sheets", rt.handleSheets)
	mux.HandleFunc("/api/v1/sheets/sync", rt.handleSheetsSync)
	if deps.Webhook != nil {
		mux.HandleFunc("/callback", deps.Webhook)
	}
	return mux
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Knowledge == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "knowledge store is unavailable"})
		return
	}
	if err := r.deps.Knowledge.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "shopbot",
		"environment": r.deps.Config.Environment,
		"model":       r.deps.Config.LLMModel,
		"stages":      r.deps.Config.Stages(),
	})
}

func (r *router) handleSheets(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Sheets == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "knowledge store is unavailable"})
		return
	}
	sheets, err := r.deps.Sheets.ListSheets(req.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sheets": sheets,
		"count":  len(sheets),
	})
}

// handleSheetsSync triggers an immediate mirror refresh, outside the cron
// cadence. Used after editing the spreadsheet.
func (r *router) handleSheetsSync(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Sync == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sheet sync is unavailable"})
		return
	}
	r.deps.Sync.SyncOnce(req.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
