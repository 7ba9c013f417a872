package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vantutran2k1/rsql/internal/filterstore"
	"github.com/vantutran2k1/rsql/internal/query"
	"github.com/vantutran2k1/rsql/pkg/logger"
)

const cacheHeader = "X-RSQL-Cache"

type Compiler interface {
	Compile(ctx context.Context, req query.Request) (*query.Result, bool, error)
}

// FilterStore is nil when saved filters are disabled.
type FilterStore interface {
	List(ctx context.Context) ([]filterstore.Filter, error)
	Get(ctx context.Context, name string) (*filterstore.Filter, error)
}

type APIHandler struct {
	compiler Compiler
	store    FilterStore
}

func NewAPIHandler(c Compiler, store FilterStore) *APIHandler {
	return &APIHandler{
		compiler: c,
		store:    store,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCompile serves GET /v1/compile.
func (h *APIHandler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.Filter = r.URL.Query().Get("filter")

	h.compile(w, r, req)
}

// HandleListFilters serves GET /v1/filters.
func (h *APIHandler) HandleListFilters(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "saved filters are disabled", http.StatusNotFound)
		return
	}

	filters, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if filters == nil {
		filters = []filterstore.Filter{}
	}
	writeJSON(w, http.StatusOK, filters)
}

// HandleCompileSaved serves GET /v1/filters/{name}/compile. The saved target
// is used unless the request names one.
func (h *APIHandler) HandleCompileSaved(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "saved filters are disabled", http.StatusNotFound)
		return
	}

	f, err := h.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.Filter = f.Expression
	if r.URL.Query().Get("target") == "" {
		if req.Target, err = query.ParseTarget(f.Target); err != nil {
			writeError(w, r, err)
			return
		}
	}

	h.compile(w, r, req)
}

func (h *APIHandler) compile(w http.ResponseWriter, r *http.Request, req query.Request) {
	res, cached, err := h.compiler.Compile(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cached {
		w.Header().Set(cacheHeader, "HIT")
	} else {
		w.Header().Set(cacheHeader, "MISS")
	}
	writeJSON(w, http.StatusOK, res)
}

func requestFromQuery(r *http.Request) (query.Request, error) {
	q := r.URL.Query()

	target, err := query.ParseTarget(q.Get("target"))
	if err != nil {
		return query.Request{}, err
	}
	req := query.Request{
		Target: target,
		Table:  q.Get("table"),
		Order:  q["order"],
	}

	if req.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return query.Request{}, err
	}
	if req.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return query.Request{}, err
	}
	return req, nil
}

func intParam(s, name string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", query.ErrInvalidRequest, name)
	}
	return &n, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case query.IsInvalidInput(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, filterstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
