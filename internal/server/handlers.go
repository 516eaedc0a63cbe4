package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdtdelta/backlog/internal/database"
	"github.com/cdtdelta/backlog/internal/query"
	"github.com/cdtdelta/backlog/internal/stats"
	"github.com/cdtdelta/backlog/internal/table"
)

// CacheControl lets shared caches keep game pages for ten minutes and serve
// them stale while revalidating for fifteen more.
const CacheControl = "public, s-maxage=600, stale-while-revalidate=900"

// PrivateCacheControl keeps pages rendered for an admin out of every cache.
const PrivateCacheControl = "private, no-store"

// proxyErrorMessage is the only failure detail find-games exposes.
const proxyErrorMessage = "metadata search failed"

// Query parameters of the games endpoint besides the persisted state.
const (
	ParamView     = "view"
	ParamPage     = "page"
	ParamPageSize = "pageSize"
)

// Handlers serves the catalog API over a Catalog and an optional Finder.
type Handlers struct {
	catalog    Catalog
	finder     Finder
	adminToken string
	pageSize   int
	log        *zap.Logger
}

// NewHandlers returns handlers rendering pageSize rows per page unless a
// request asks for another valid size. An empty adminToken disables every
// admin endpoint.
func NewHandlers(cat Catalog, finder Finder, adminToken string, pageSize int, log *zap.Logger) *Handlers {
	if !table.ValidPageSize(pageSize) {
		pageSize = table.DefaultPageSize
	}
	return &Handlers{
		catalog:    cat,
		finder:     finder,
		adminToken: adminToken,
		pageSize:   pageSize,
		log:        log,
	}
}

// Routes returns the API handler with request logging applied.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/games", h.HandleGames)
	mux.HandleFunc("GET /api/games/{id}", h.HandleGame)
	mux.HandleFunc("GET /api/stats", h.HandleStats)
	mux.HandleFunc("GET /api/status", h.HandleStatus)
	mux.HandleFunc("POST /api/igdb/token", h.requireAdmin(h.HandleToken))
	mux.HandleFunc("POST /api/igdb/find-games", h.requireAdmin(h.HandleFindGames))
	return h.logRequests(mux)
}

type columnResponse struct {
	ID       string `json:"id"`
	Header   string `json:"header"`
	Sortable bool   `json:"sortable"`
}

type gamesResponse struct {
	View      table.ViewKind   `json:"view"`
	Columns   []columnResponse `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Sort      query.SortSpec   `json:"sort"`
	Filter    string           `json:"filter"`
	PageIndex int              `json:"pageIndex"`
	PageSize  int              `json:"pageSize"`
	PageCount int              `json:"pageCount"`
	Total     int              `json:"total"`
	CanPrev   bool             `json:"canPrev"`
	CanNext   bool             `json:"canNext"`
	Query     string           `json:"query"`
}

// HandleGames renders one page of a view. Sort and filter come from the
// persisted query parameters; malformed values fall back to the view's
// defaults and out-of-range pages are clamped.
func (h *Handlers) HandleGames(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	kind, err := table.ParseViewKind(params.Get(ParamView))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	view, err := table.Columns(kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		h.log.Error("loading snapshot", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "games unavailable"})
		return
	}

	sync := query.NewSynchronizer(query.State{Sort: view.DefaultSort}, view.IsSortable)
	state := sync.Decode(params)

	pageSize := h.pageSize
	if n, err := strconv.Atoi(params.Get(ParamPageSize)); err == nil && table.ValidPageSize(n) {
		pageSize = n
	}
	pageIndex := 0
	if n, err := strconv.Atoi(params.Get(ParamPage)); err == nil {
		pageIndex = n - 1
	}

	admin := h.isAdmin(r)
	page, err := table.Render(snap.Rows(kind), view, table.Request{
		Filter:     state.Filter,
		Sort:       state.Sort,
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		ShowHidden: admin,
	})
	if err != nil {
		// Decode only yields sortable fields, so this is a registry bug.
		h.log.Error("rendering page", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rendering failed"})
		return
	}

	resp := gamesResponse{
		View:      kind,
		Columns:   make([]columnResponse, len(page.Columns)),
		Rows:      make([]map[string]any, len(page.Rows)),
		Sort:      page.Sort,
		Filter:    page.Filter,
		PageIndex: page.PageIndex,
		PageSize:  page.PageSize,
		PageCount: page.PageCount,
		Total:     page.Total,
		CanPrev:   page.CanPrev,
		CanNext:   page.CanNext,
		Query:     sync.Encode(state, nil).Encode(),
	}
	for i, c := range page.Columns {
		resp.Columns[i] = columnResponse{ID: c.ID, Header: c.Header, Sortable: c.Sortable}
	}
	for i, g := range page.Rows {
		row := make(map[string]any, len(page.Columns))
		for _, c := range page.Columns {
			row[c.ID] = c.Value(g)
		}
		resp.Rows[i] = row
	}

	// Admin pages carry hidden columns and must never reach a shared cache.
	w.Header().Add("Vary", "Authorization")
	if admin {
		w.Header().Set("Cache-Control", PrivateCacheControl)
	} else {
		w.Header().Set("Cache-Control", CacheControl)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGame returns a single game document.
func (h *Handlers) HandleGame(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		h.log.Error("loading snapshot", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "games unavailable"})
		return
	}

	g, err := snap.Game(r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "game not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Cache-Control", CacheControl)
	writeJSON(w, http.StatusOK, g)
}

// HandleStats returns the summary over every game.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		h.log.Error("loading snapshot", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "games unavailable"})
		return
	}

	w.Header().Set("Cache-Control", CacheControl)
	writeJSON(w, http.StatusOK, stats.Summarize(snap.Games))
}

type statusResponse struct {
	Games       int     `json:"games"`
	Played      int     `json:"played"`
	Backlog     int     `json:"backlog"`
	LoadedAt    string  `json:"loadedAt"`
	SnapshotAge float64 `json:"snapshotAgeSeconds"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	age, _ := h.catalog.Age()
	writeJSON(w, http.StatusOK, statusResponse{
		Games:       len(snap.Games),
		Played:      len(snap.Played),
		Backlog:     len(snap.Backlog),
		LoadedAt:    snap.LoadedAt.UTC().Format(time.RFC3339),
		SnapshotAge: age.Seconds(),
	})
}

// HandleToken issues a metadata API access token.
func (h *Handlers) HandleToken(w http.ResponseWriter, r *http.Request) {
	if h.finder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "metadata proxy not configured"})
		return
	}

	token, err := h.finder.Token(r.Context())
	if err != nil {
		h.log.Warn("token request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Something went wrong"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type findGamesRequest struct {
	Token      string `json:"token"`
	SearchTerm string `json:"searchTerm"`
}

// HandleFindGames searches the metadata API with a token from HandleToken.
func (h *Handlers) HandleFindGames(w http.ResponseWriter, r *http.Request) {
	if h.finder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "metadata proxy not configured"})
		return
	}

	var req findGamesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.SearchTerm) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing searchTerm"})
		return
	}

	games, err := h.finder.FindGames(r.Context(), req.Token, req.SearchTerm)
	if err != nil {
		h.log.Warn("find-games failed", zap.String("term", req.SearchTerm), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"errorType": "findGamesError",
			"error":     proxyErrorMessage,
		})
		return
	}
	h.log.Debug("find-games success", zap.Int("results", len(games)))
	writeJSON(w, http.StatusOK, games)
}

// isAdmin reports whether the request carries the admin bearer token.
// No token is ever accepted when none is configured.
func (h *Handlers) isAdmin(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) == 1
}

func (h *Handlers) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.isAdmin(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		h.log.Info("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
