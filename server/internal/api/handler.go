package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/correlation"
	"github.com/plantqc/historian-bridge/server/internal/flowrate"
	"github.com/plantqc/historian-bridge/server/internal/historian"
	"github.com/plantqc/historian-bridge/server/internal/registry"
	"github.com/plantqc/historian-bridge/server/internal/store"
	"github.com/plantqc/historian-bridge/server/internal/tags"
	"github.com/plantqc/historian-bridge/server/internal/ws"
)

// Deps are the components the handlers read from. Live may be nil, in which
// case /telemetry/live is not served.
type Deps struct {
	Historian   *historian.Client
	Tags        *tags.Resolver
	Store       *store.Store
	Correlation *correlation.Engine
	FlowRate    *flowrate.Query
	Live        *ws.Hub
}

// Handler is the HTTP handler for all /telemetry/* endpoints.
type Handler struct {
	Deps
	mux *http.ServeMux
}

// New creates a Handler wired to deps and registers all routes.
func New(deps Deps) http.Handler {
	h := &Handler{Deps: deps, mux: http.NewServeMux()}

	if deps.Live != nil {
		h.mux.Handle("/telemetry/live", deps.Live)
	}
	h.mux.HandleFunc("/telemetry/latest", h.latest)
	h.mux.HandleFunc("/telemetry/range", h.rangeReadings)
	h.mux.HandleFunc("/telemetry/batch-correlation", h.batchCorrelation)
	h.mux.HandleFunc("/telemetry/flow-rate/", h.flowRate) // subtree, extracts {batchId}
	h.mux.HandleFunc("/telemetry/status", h.status)
	h.mux.HandleFunc("/telemetry/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// latest returns GET /telemetry/latest?line&signal: newest reading of a tag.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tag, err := h.tagFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	reading, err := h.Historian.Latest(r.Context(), tag)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, LatestResponse{
		TagName: tag.Name,
		Reading: reading,
		Mode:    h.Historian.Manager().State().Mode,
	})
}

// rangeReadings returns GET /telemetry/range?line&signal&start&end.
func (h *Handler) rangeReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	tag, err := h.tagFromQuery(q)
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := parseTime(q, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseTime(q, "end")
	if err != nil {
		writeError(w, err)
		return
	}

	readings, err := h.Historian.Range(r.Context(), tag, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, RangeResponse{
		TagName:  tag.Name,
		Readings: readings,
		Metadata: RangeMetadata{
			Line:   tag.Line,
			Signal: tag.Kind,
			Unit:   tag.Kind.Unit(),
			Start:  start,
			End:    end,
			Count:  len(readings),
			Mode:   h.Historian.Manager().State().Mode,
		},
	})
}

// batchCorrelation returns GET /telemetry/batch-correlation.
func (h *Handler) batchCorrelation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sel, err := selectorFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Correlation.Correlate(r.Context(), sel)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// flowRate returns GET /telemetry/flow-rate/{batchId}: the result object, or
// JSON null when the batch has no matching rows.
func (h *Handler) flowRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/telemetry/flow-rate/"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "malformed batch id")
		return
	}
	res, err := h.FlowRate.FlowRate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// status returns GET /telemetry/status: historian connection state.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st := h.Historian.Manager().State()
	resp := StatusResponse{
		Mode:       st.Mode,
		LastError:  st.LastError,
		UpdatedAt:  st.UpdatedAt,
		CachedTags: h.Store.Count(),
		CacheTTL:   h.Store.TTL().Seconds(),
	}
	if h.Live != nil {
		resp.LiveClients = h.Live.Count()
	}
	jsonResp(w, http.StatusOK, resp)
}

// snapshot returns GET /telemetry/snapshot: every cached latest reading.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.Store.List()
	out := make([]SnapshotEntry, 0, len(entries))
	for _, e := range entries {
		se := SnapshotEntry{
			Reading:   e.Reading,
			UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
		}
		for _, t := range h.Tags.All() {
			if t.Name == e.Reading.Tag {
				se.Line, se.Signal = t.Line, t.Kind
				break
			}
		}
		out = append(out, se)
	}

	jsonResp(w, http.StatusOK, SnapshotResponse{
		Readings:    out,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) tagFromQuery(q url.Values) (types.Tag, error) {
	line, err := types.ParseReactorLine(q.Get("line"))
	if err != nil {
		return types.Tag{}, err
	}
	kind, err := types.ParseSignalKind(q.Get("signal"))
	if err != nil {
		return types.Tag{}, err
	}
	return h.Tags.Resolve(line, kind)
}

func selectorFromQuery(q url.Values) (registry.Selector, error) {
	sel := registry.Selector{
		BatchID: strings.TrimSpace(q.Get("batch_id")),
		LotID:   strings.TrimSpace(q.Get("lot_id")),
	}
	if q.Has("line") {
		line, err := types.ParseReactorLine(q.Get("line"))
		if err != nil {
			return sel, err
		}
		sel.Line = line
	}
	if q.Has("from") {
		from, err := parseTime(q, "from")
		if err != nil {
			return sel, err
		}
		sel.From = &from
	}
	if q.Has("to") {
		to, err := parseTime(q, "to")
		if err != nil {
			return sel, err
		}
		sel.To = &to
	}
	return sel, sel.Validate()
}

// parseTime reads an RFC 3339 timestamp from q[key].
func parseTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, &paramError{key: key, msg: "is required"}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &paramError{key: key, msg: "is not an RFC 3339 timestamp"}
	}
	return t.UTC(), nil
}

type paramError struct {
	key, msg string
}

func (e *paramError) Error() string { return e.key + " " + e.msg }

func (e *paramError) Unwrap() error { return types.ErrInvalidSelector }

// writeError maps a domain error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidSelector):
		jsonErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrQueryFailed):
		slog.Warn("api: query failed", "err", err)
		jsonErr(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("api: unexpected error", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
