package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tdhoang/cost-ledger/internal/auth"
	"github.com/tdhoang/cost-ledger/internal/costs"
)

type Handler struct {
	engine          *costs.Engine
	store           costs.Store
	tracer          trace.Tracer
	defaultPageSize int
}

func NewHandler(engine *costs.Engine, store costs.Store, tracer trace.Tracer, defaultPageSize int) *Handler {
	return &Handler{
		engine:          engine,
		store:           store,
		tracer:          tracer,
		defaultPageSize: defaultPageSize,
	}
}

// HandleList serves GET /v1/costs: one page of filtered records, newest
// date first, with pagination metadata.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.list")
	defer span.End()

	params, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.parsePage(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("page", page.Page),
		attribute.Int("limit", page.Limit),
	)

	recs, pagination, err := h.engine.List(ctx, costs.Compile(params), page)
	if err != nil {
		h.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: recs, Pagination: &pagination})
}

// HandleSummary serves GET /v1/costs/summary: per-service totals over
// the filtered records, biggest spender first.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.summary")
	defer span.End()

	params, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.engine.SummaryByService(ctx, costs.Compile(params))
	if err != nil {
		h.storeError(w, err)
		return
	}

	writeData(w, http.StatusOK, summary)
}

// HandleTrends serves GET /v1/costs/trends: per-day totals over the
// filtered records, oldest first. Days without records are not filled in.
func (h *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.trends")
	defer span.End()

	params, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trend, err := h.engine.DailyTrend(ctx, costs.Compile(params))
	if err != nil {
		h.storeError(w, err)
		return
	}

	writeData(w, http.StatusOK, trend)
}

// HandleFilters serves GET /v1/costs/filters: the distinct values of
// every filterable dimension, always over the whole ledger.
func (h *Handler) HandleFilters(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.filters")
	defer span.End()

	catalog, err := h.engine.FilterValues(ctx)
	if err != nil {
		h.storeError(w, err)
		return
	}

	writeData(w, http.StatusOK, catalog)
}

// HandleCreate serves POST /v1/costs.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.create")
	defer span.End()

	var payload costPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := payload.toRecord()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Insert(ctx, rec); err != nil {
		h.storeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, rec)
}

// HandleCreateBatch serves POST /v1/costs/batch with a JSON array of
// records. The whole batch is validated before anything is written.
func (h *Handler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.create_batch")
	defer span.End()

	var payloads []costPayload
	if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payloads) == 0 {
		writeError(w, http.StatusBadRequest, "at least one record is required")
		return
	}
	span.SetAttributes(attribute.Int("batch_size", len(payloads)))

	recs := make([]*costs.CostRecord, 0, len(payloads))
	for i, payload := range payloads {
		rec, err := payload.toRecord()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("record %d: %s", i, err))
			return
		}
		recs = append(recs, rec)
	}

	if err := h.store.InsertBatch(ctx, recs); err != nil {
		h.storeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, recs)
}

// HandleUpdate serves PUT /v1/costs/{id}: a full-record overwrite.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.update")
	defer span.End()

	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("record_id", id))

	var payload costPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := payload.toRecord()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec.ID = id

	if err := h.store.Update(ctx, rec); err != nil {
		h.storeError(w, err)
		return
	}

	writeData(w, http.StatusOK, rec)
}

// HandleDelete serves DELETE /v1/costs/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(ctx, "costs.delete")
	defer span.End()

	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("record_id", id))

	if err := h.store.Delete(ctx, id); err != nil {
		h.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "cost record deleted"})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (ctx context.Context, ok bool) {
	ctx = r.Context()
	if auth.GetAccountID(ctx) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return ctx, false
	}
	return ctx, true
}

// storeError maps store outcomes onto the error taxonomy: not-found and
// conflict are distinct caller-visible conditions, everything else is an
// opaque store failure.
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, costs.ErrNotFound):
		writeError(w, http.StatusNotFound, "cost record not found")
	case errors.Is(err, costs.ErrDuplicate):
		writeError(w, http.StatusConflict, "cost record already exists")
	default:
		log.Printf("store error: %v", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
	}
}

// parseFilters validates and types the raw filter parameters. Each
// dimension may be repeated to request a match-any filter.
func parseFilters(q url.Values) (costs.FilterParams, error) {
	var p costs.FilterParams

	if s := q.Get("startDate"); s != "" {
		t, err := costs.ParseDate(s)
		if err != nil {
			return p, fmt.Errorf("invalid startDate %q (use YYYY-MM-DD)", s)
		}
		p.StartDate = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, err := costs.ParseDate(s)
		if err != nil {
			return p, fmt.Errorf("invalid endDate %q (use YYYY-MM-DD)", s)
		}
		p.EndDate = &t
	}

	p.Services = q["serviceName"]
	p.Regions = q["region"]
	p.Accounts = q["accountId"]
	return p, nil
}

func (h *Handler) parsePage(q url.Values) (costs.PageRequest, error) {
	page := costs.PageRequest{Page: 1, Limit: h.defaultPageSize}

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return page, fmt.Errorf("page must be a positive integer, got %q", s)
		}
		page.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return page, fmt.Errorf("limit must be a positive integer, got %q", s)
		}
		page.Limit = n
	}
	return page, nil
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid record id %q", raw)
	}
	return id, nil
}

// costPayload is the mutable field set of a record as accepted on create
// and update. Optional fields stay nil when omitted — absent means "not
// recorded", never empty string.
type costPayload struct {
	Date        string          `json:"date"`
	ServiceName string          `json:"service_name"`
	CostAmount  decimal.Decimal `json:"cost_amount"`
	Region      string          `json:"region"`
	AccountID   string          `json:"account_id"`
	ResourceID  *string         `json:"resource_id"`
	UsageType   *string         `json:"usage_type"`
	Description *string         `json:"description"`
}

func (p *costPayload) toRecord() (*costs.CostRecord, error) {
	if p.Date == "" {
		return nil, errors.New("date is required")
	}
	d, err := costs.ParseDate(p.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", p.Date)
	}
	if p.ServiceName == "" {
		return nil, errors.New("service_name is required")
	}
	if p.Region == "" {
		return nil, errors.New("region is required")
	}
	if p.AccountID == "" {
		return nil, errors.New("account_id is required")
	}
	if p.CostAmount.IsNegative() {
		return nil, errors.New("cost_amount must not be negative")
	}

	return &costs.CostRecord{
		Date:        d,
		ServiceName: p.ServiceName,
		CostAmount:  p.CostAmount.Round(2),
		Region:      p.Region,
		AccountID:   p.AccountID,
		ResourceID:  p.ResourceID,
		UsageType:   p.UsageType,
		Description: p.Description,
	}, nil
}
