// Package chi is the HTTP transport: the search protocol endpoints, item
// CRUD, and the health and metrics surface.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/groupmesh/incsearch/internal/domain"
	"github.com/groupmesh/incsearch/internal/domain/criteria"
	domitem "github.com/groupmesh/incsearch/internal/domain/item"
	"github.com/groupmesh/incsearch/internal/domain/result"
	"github.com/groupmesh/incsearch/internal/domain/schema"
	domses "github.com/groupmesh/incsearch/internal/domain/session"
	healthuc "github.com/groupmesh/incsearch/internal/usecase/health"
	itemuc "github.com/groupmesh/incsearch/internal/usecase/item"
	searchuc "github.com/groupmesh/incsearch/internal/usecase/search"
)

// userHeader carries the acting user id; absent means the default user.
const userHeader = "X-User-Id"

const defaultUser = "default"

// Error codes returned to clients.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeCriteriaInvalid  = "criteria_invalid"
	codeCriteriaApply    = "criteria_apply_failed"
	codeUnknownSchema    = "unknown_schema"
	codeItemNotFound     = "item_not_found"
	codeFolderNotFound   = "folder_not_found"
	codeNotFound         = "not_found"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers over the usecases.
type Server struct {
	search        *searchuc.Service
	items         *itemuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	items *itemuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		items:  items,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		criteriaApplyHandler,
		sentinelHandler(domain.ErrCriteriaParse, http.StatusBadRequest, codeCriteriaInvalid),
		sentinelHandler(domain.ErrUnknownSchema, http.StatusBadRequest, codeUnknownSchema),
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, codeItemNotFound),
		sentinelHandler(domain.ErrFolderNotFound, http.StatusNotFound, codeFolderNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
	}
	return s
}

// Routes mounts all endpoints on a fresh router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/views/{view}/search", s.Search)
		r.Post("/views/{view}/updatesearch", s.UpdateSearch)
		r.Post("/views/{view}/stopsearch", s.StopSearch)

		r.Route("/folders/{folder}/items", func(r chi.Router) {
			r.Get("/", s.ListItems)
			r.Put("/{id}", s.PutItem)
			r.Get("/{id}", s.GetItem)
			r.Delete("/{id}", s.DeleteItem)
		})
	})

	return r
}

// --- Search protocol ---

type searchPair struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type searchRequest struct {
	Schema    string       `json:"schema"`
	Search    string       `json:"search,omitempty"`
	Fields    []searchPair `json:"fields,omitempty"`
	MatchAll  bool         `json:"matchall,omitempty"`
	Bucket    string       `json:"bucket,omitempty"`
	Start     *time.Time   `json:"start,omitempty"`
	End       *time.Time   `json:"end,omitempty"`
	Folders   []string     `json:"folders"`
	Recursive bool         `json:"recursive,omitempty"`
	RowCount  int          `json:"rowcount,omitempty"`
	Sort      []string     `json:"sort,omitempty"`
}

type updateRequest struct {
	RowCount int      `json:"rowcount,omitempty"`
	Sort     []string `json:"sort,omitempty"`
}

type rowResponse struct {
	ID    string            `json:"id"`
	Stamp int64             `json:"stamp"`
	Props map[string]string `json:"props"`
}

type listResponse struct {
	Type string        `json:"type"`
	Item []rowResponse `json:"item"`
}

type pageResponse struct {
	Start         int `json:"start"`
	RowCount      int `json:"rowcount"`
	TotalRowCount int `json:"totalrowcount"`
}

type searchResponse struct {
	Type           string       `json:"type"`
	SearchFolderID string       `json:"searchfolderentryid,omitempty"`
	SearchState    string       `json:"searchstate"`
	Results        int          `json:"results"`
	List           listResponse `json:"list"`
	Page           pageResponse `json:"page"`
}

// Search handles POST /api/v1/views/{view}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	user, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sch, ok := schema.ByName(req.Schema)
	if !ok {
		writeError(w, http.StatusBadRequest, codeUnknownSchema, "unknown schema "+req.Schema)
		return
	}

	crit, err := criteriaFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	out, err := s.search.Search(r.Context(), user, view, crit, sch, req.RowCount)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	rows := sortRows(out.Rows, req.Sort)
	writeJSON(w, http.StatusOK, searchResponse{
		Type:           "search",
		SearchFolderID: out.Handle,
		SearchState:    string(out.State),
		Results:        out.Total,
		List:           listToResponse(rows),
		Page:           pageResponse{Start: 0, RowCount: len(rows), TotalRowCount: out.Total},
	})
}

// UpdateSearch handles POST /api/v1/views/{view}/updatesearch.
func (s *Server) UpdateSearch(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	user, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	var req updateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	out, err := s.search.Update(r.Context(), user, view, req.RowCount)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !out.Active {
		// A poll without a running search is a client race, not a failure.
		writeJSON(w, http.StatusOK, searchResponse{
			Type:        "updatesearch",
			SearchState: "inactive",
			List:        listToResponse(nil),
		})
		return
	}

	rows := sortRows(out.Rows, req.Sort)
	writeJSON(w, http.StatusOK, searchResponse{
		Type:        "updatesearch",
		SearchState: string(out.State),
		Results:     out.Total,
		List:        listToResponse(rows),
		Page:        pageResponse{Start: 0, RowCount: len(rows), TotalRowCount: out.Total},
	})
}

// StopSearch handles POST /api/v1/views/{view}/stopsearch.
func (s *Server) StopSearch(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	user, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if err := s.search.Stop(r.Context(), user, view); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"type":        "stopsearch",
		"searchstate": "stopped",
	})
}

// --- Item CRUD ---

type putItemRequest struct {
	Props map[string]string `json:"props"`
}

// PutItem handles PUT /api/v1/folders/{folder}/items/{id}.
func (s *Server) PutItem(w http.ResponseWriter, r *http.Request) {
	folder, err := folderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	var req putItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	it, err := s.items.Put(r.Context(), folder, id, req.Props)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToResponse(it))
}

// GetItem handles GET /api/v1/folders/{folder}/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	folder, err := folderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	it, err := s.items.Get(r.Context(), folder, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToResponse(it))
}

// DeleteItem handles DELETE /api/v1/folders/{folder}/items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	folder, err := folderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if err := s.items.Delete(r.Context(), folder, id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /api/v1/folders/{folder}/items.
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	folder, err := folderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	items, err := s.items.List(r.Context(), folder)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := make([]rowResponse, len(items))
	for i, it := range items {
		out[i] = itemToResponse(it)
	}
	writeJSON(w, http.StatusOK, listResponse{Type: "list", Item: out})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Mapping helpers ---

// requestUser resolves the acting user. The header is client-supplied and
// keys session records, so it is validated like any other id.
func requestUser(r *http.Request) (string, error) {
	u := r.Header.Get(userHeader)
	if u == "" {
		return defaultUser, nil
	}
	return u, domses.ValidateUser(u)
}

// folderParam decodes the folder id; nested folders arrive percent-encoded.
func folderParam(r *http.Request) (string, error) {
	folder, err := url.PathUnescape(chi.URLParam(r, "folder"))
	if err != nil {
		return "", err
	}
	return folder, domitem.ValidateFolder(folder)
}

func idParam(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		return "", err
	}
	return id, domitem.ValidateID(id)
}

func criteriaFromRequest(req searchRequest) (criteria.Criteria, error) {
	pairs := make([]criteria.Pair, 0, len(req.Fields))
	for _, f := range req.Fields {
		p, err := criteria.NewPair(f.Field, f.Value)
		if err != nil {
			return criteria.Criteria{}, err
		}
		pairs = append(pairs, p)
	}

	mode := criteria.MatchAny
	if req.MatchAll {
		mode = criteria.MatchAll
	}

	var dr criteria.DateRange
	if req.Start != nil || req.End != nil {
		start, end := time.Time{}, time.Time{}
		if req.Start != nil {
			start = *req.Start
		}
		if req.End != nil {
			end = *req.End
		}
		var err error
		if dr, err = criteria.NewDateRange(start, end); err != nil {
			return criteria.Criteria{}, err
		}
	}

	for _, f := range req.Folders {
		if err := domitem.ValidateFolder(f); err != nil {
			return criteria.Criteria{}, err
		}
	}

	return criteria.New(req.Search, pairs, mode, req.Bucket, dr, req.Folders, req.Recursive)
}

// sortRows orders an outgoing batch by the requested property fields. The
// differ works in stamp order; sorting is presentation only.
func sortRows(rows []result.Row, fields []string) []result.Row {
	if len(fields) == 0 || len(rows) < 2 {
		return rows
	}
	sorted := make([]result.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, f := range fields {
			a, _ := sorted[i].Prop(f)
			b, _ := sorted[j].Prop(f)
			if a != b {
				return a < b
			}
		}
		return false
	})
	return sorted
}

func listToResponse(rows []result.Row) listResponse {
	out := make([]rowResponse, len(rows))
	for i, r := range rows {
		out[i] = rowResponse{ID: r.ID(), Stamp: r.Stamp(), Props: r.Props()}
	}
	return listResponse{Type: "list", Item: out}
}

func itemToResponse(it domitem.Item) rowResponse {
	return rowResponse{ID: it.ID(), Stamp: it.Stamp(), Props: it.Props()}
}

// --- Error handling ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	BackendCode string `json:"backend_code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCriteriaParse,
		domain.ErrCriteriaApply,
		domain.ErrUnknownSchema,
		domain.ErrItemNotFound,
		domain.ErrFolderNotFound,
		domain.ErrNotFound,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// criteriaApplyHandler surfaces the backend's native error code so clients
// can tell an unsupported restriction from a transient failure.
func criteriaApplyHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrCriteriaApply) {
		return false
	}
	resp := errorResponse{Code: codeCriteriaApply, Message: msg}
	var applyErr *domain.CriteriaApplyError
	if errors.As(err, &applyErr) {
		resp.BackendCode = applyErr.BackendCode
	}
	writeJSON(w, http.StatusBadGateway, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
