package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lane-defense/internal/command"
	"lane-defense/internal/game"
	"lane-defense/pkg/logger"
)

const (
	defaultEventCount  = 50
	maxEventCount      = 500
	defaultResultCount = 10
	maxResultCount     = 100
	maxBodyBytes       = 4 << 10
)

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	// Clone so the pool can recycle the buffer while we encode
	snap := h.engine.GetSnapshot().Clone()
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	stats := map[string]interface{}{
		"summary":      h.engine.Summary(),
		"hostiles":     len(snap.Hostiles),
		"defenders":    len(snap.Defenders),
		"projectiles":  len(snap.Projectiles),
		"collectibles": len(snap.Collectibles),
		"eventLog":     h.engine.GetEventLogStats(),
	}
	if h.stats != nil {
		for k, v := range h.stats() {
			stats[k] = v
		}
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Rules())
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", defaultEventCount, maxEventCount)
	events := h.engine.RecentEvents(n)
	if events == nil {
		events = []game.Event{}
	}
	writeJSON(w, events)
}

func (h *routerHandlers) handleGetResults(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultResultCount, maxResultCount)
	results, err := h.results.TopResults(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("❌ Failed to list results")
		writeError(w, "results unavailable", http.StatusInternalServerError)
		return
	}
	if results == nil {
		writeJSON(w, []struct{}{})
		return
	}
	writeJSON(w, results)
}

func (h *routerHandlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind game.DefenderKind `json:"kind"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.SelectKind(req.Kind); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "selected": req.Kind})
}

func (h *routerHandlers) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind game.DefenderKind `json:"kind"`
		Col  *int              `json:"col"`
		Lane *int              `json:"lane"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Col == nil || req.Lane == nil {
		writeError(w, "col and lane are required", http.StatusBadRequest)
		return
	}

	id, err := h.engine.TryPlace(*req.Col, *req.Lane, req.Kind, sourceOf(r))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"success":    true,
		"defenderId": id,
		"currency":   h.engine.GetSnapshot().Currency,
	})
}

func (h *routerHandlers) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID game.EntityID `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	value, ok := h.engine.Collect(req.ID, sourceOf(r))
	if !ok {
		writeError(w, "no such collectible", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "collected": value})
}

func (h *routerHandlers) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, "x and y are required", http.StatusBadRequest)
		return
	}

	res, err := h.engine.PlaceAt(*req.X, *req.Y, sourceOf(r))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *routerHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Line string `json:"line"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var res command.Result
	if h.admin.Check(r) {
		res = h.commands.HandleAdminLine(req.Line, sourceOf(r))
	} else {
		res = h.commands.HandleLine(req.Line, sourceOf(r))
	}
	recordCommandResult(res)
	if res.Err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(res.Err))
		json.NewEncoder(w).Encode(res)
		return
	}
	writeJSON(w, res)
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	prev := h.engine.Restart()
	writeJSON(w, map[string]interface{}{"success": true, "previous": prev})
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot().Clone()

	start := time.Now()
	var buf bytes.Buffer
	h.renderMu.Lock()
	err := h.renderer.WritePNG(&buf, &snap)
	h.renderMu.Unlock()
	RecordRender(time.Since(start))

	if err != nil {
		logger.Log.WithError(err).Error("❌ Frame encode failed")
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Helper functions (package-level for reuse)

func recordCommandResult(res command.Result) {
	switch {
	case errors.Is(res.Err, command.ErrRateLimited):
		RecordCommand("rate_limited")
	case res.OK:
		RecordCommand("ok")
	default:
		RecordCommand("rejected")
	}
}

// statusFor maps simulation and command errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrCellOccupied), errors.Is(err, game.ErrGameOver):
		return http.StatusConflict
	case errors.Is(err, game.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, command.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, command.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func writeGameError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func sourceOf(r *http.Request) string {
	return "http:" + GetClientIP(r)
}

func queryInt(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
