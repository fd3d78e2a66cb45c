package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/stripfi/ysm/internal/engine"
	"github.com/stripfi/ysm/internal/logger"
	"github.com/stripfi/ysm/internal/state"
	"github.com/stripfi/ysm/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the read-only HTTP API over the engine and the database.
type WebServer struct {
	router *mux.Router
	port   string
	engine *engine.Engine
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, eng *engine.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		engine: eng,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/series", ws.handleGetSeries).Methods("GET")
	api.HandleFunc("/series/{id}", ws.handleGetSeriesByID).Methods("GET")
	api.HandleFunc("/pool", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pool/latest", ws.handleGetLatestPoolSnapshot).Methods("GET")
	api.HandleFunc("/operations", ws.handleGetOperations).Methods("GET")
	api.HandleFunc("/operations/{id}", ws.handleGetOperation).Methods("GET")
	api.HandleFunc("/runs", ws.handleGetRuns).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	seriesCount := 0
	poolAttached := false
	if ws.engine != nil {
		seriesCount = len(ws.engine.SeriesIDs())
		poolAttached = ws.engine.Pool() != nil
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "ysm-yield-stripping-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"series_count":     seriesCount,
			"pool_attached":    poolAttached,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetSeries lists every live series with its snapshot view.
func (ws *WebServer) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Engine not available")
		return
	}

	var series []types.SeriesSnapshot
	for _, id := range ws.engine.SeriesIDs() {
		t := ws.engine.Tranche(id)
		if t == nil {
			continue
		}
		series = append(series, ws.engine.SeriesSnapshotOf(t))
	}

	response := map[string]interface{}{
		"series": series,
		"count":  len(series),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSeriesByID returns one series: its configuration and live snapshot.
func (ws *WebServer) handleGetSeriesByID(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Engine not available")
		return
	}

	vars := mux.Vars(r)
	id := types.SeriesID(vars["id"])

	t := ws.engine.Tranche(id)
	if t == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Series not found")
		return
	}

	response := map[string]interface{}{
		"series":   t.Series(),
		"snapshot": ws.engine.SeriesSnapshotOf(t),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns the live pool state.
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil || ws.engine.Pool() == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No pool attached")
		return
	}

	p := ws.engine.Pool()
	response := map[string]interface{}{
		"state":     p.State(),
		"lp_supply": p.LpTotalSupply(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestPoolSnapshot returns the most recent persisted pool snapshot.
func (ws *WebServer) handleGetLatestPoolSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := state.GetLatestPoolSnapshot()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get latest pool snapshot")
		ws.writeErrorResponse(w, http.StatusNotFound, "No pool snapshots found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snap)
}

// handleGetOperations returns recent operation receipts, optionally filtered
// by series.
func (ws *WebServer) handleGetOperations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var receipts []types.OperationReceipt
	var err error
	if seriesID := r.URL.Query().Get("series_id"); seriesID != "" {
		receipts, err = state.GetReceiptsBySeries(types.SeriesID(seriesID), limit)
	} else {
		receipts, err = state.GetRecentReceipts(limit)
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get operation receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve operations")
		return
	}

	response := map[string]interface{}{
		"operations": receipts,
		"count":      len(receipts),
		"limit":      limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetOperation returns a single receipt by operation UUID.
func (ws *WebServer) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	opID := vars["id"]

	receipt, err := state.GetReceiptByOpID(opID)
	if err != nil {
		webLogger.Error().Err(err).Str("op_id", opID).Msg("Failed to get operation receipt")
		ws.writeErrorResponse(w, http.StatusNotFound, "Operation not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// handleGetRuns returns recent settlement runs.
func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	runs, err := state.GetRecentSettlementRuns(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get settlement runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve settlement runs")
		return
	}

	response := map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParameters returns the active engine parameters.
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	configName := r.URL.Query().Get("config")
	if configName == "" {
		configName = "default"
	}

	params, err := state.LoadActiveEngineParameters(configName)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get engine parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve engine parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
