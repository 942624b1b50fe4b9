package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"b2b-analyst/internal/assistant"
	"b2b-analyst/internal/charts"
	"b2b-analyst/internal/errors"
	"b2b-analyst/internal/models"
	"b2b-analyst/internal/services"
)

const (
	defaultTrendMonths = 6
	maxTrendMonths     = 60
	rankingChartLimit  = 15
	cacheControl       = "public, max-age=300"
)

// Chatter is the slice of the assistant the HTTP layer drives.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (*assistant.ChatResult, error)
	Reset(sessionID string) bool
	Provider() string
}

type ChatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
}

type ResetRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
}

type ChatResponse struct {
	Response       string                 `json:"response"`
	Visualizations []charts.Visualization `json:"visualizations"`
	SessionID      string                 `json:"session_id"`
}

type ProductResponse struct {
	Analysis *models.ProductAnalysis `json:"analysis"`
	Charts   []*charts.Chart         `json:"charts"`
}

type TrendResponse struct {
	Analysis *models.TrendAnalysis `json:"analysis"`
	Chart    *charts.Chart         `json:"chart,omitempty"`
}

type SearchResponse struct {
	Keyword string   `json:"keyword"`
	Results []string `json:"results"`
}

type APIHandlers struct {
	analytics *services.Analytics
	agent     Chatter
	validate  *validator.Validate
	version   string
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, agent Chatter, version string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		agent:     agent,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		version:   version,
		logger:    logger,
	}
}

// decode reads a JSON body into v and validates it.
func (h *APIHandlers) decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return errors.BadRequestWrap(err, "Invalid JSON body")
	}
	if err := h.validate.Struct(v); err != nil {
		return errors.ValidationWrap(err, "Invalid request").WithDetails(err.Error())
	}
	return nil
}

// HandleHealth reports 503 until sales data is loaded.
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if transactions, _ := h.analytics.Counts(); transactions == 0 {
		errors.WriteError(w, r, h.logger, errors.ServiceUnavailable("No sales data loaded"))
		return
	}
	errors.WriteSuccess(w, r, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.analytics.Stats()
	stats["llm_provider"] = h.agent.Provider()
	errors.WriteSuccess(w, r, stats)
}

func (h *APIHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := h.decode(r, &req); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		errors.WriteError(w, r, h.logger, errors.Validation("Message is required"))
		return
	}

	result, err := h.agent.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "Chat failed"))
		return
	}

	errors.WriteSuccess(w, r, ChatResponse{
		Response:       result.Response,
		Visualizations: result.Visualizations,
		SessionID:      result.SessionID,
	})
}

func (h *APIHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := h.decode(r, &req); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccess(w, r, map[string]any{
		"session_id": req.SessionID,
		"cleared":    h.agent.Reset(req.SessionID),
	})
}

func (h *APIHandlers) HandleSearchProducts(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	errors.WriteSuccess(w, r, SearchResponse{
		Keyword: keyword,
		Results: h.analytics.SearchProducts(keyword),
	})
}

func (h *APIHandlers) HandleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	errors.WriteSuccess(w, r, SearchResponse{
		Keyword: keyword,
		Results: h.analytics.SearchCustomers(keyword),
	})
}

func (h *APIHandlers) HandleProductAnalysis(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		errors.WriteError(w, r, h.logger, errors.Validation("Product code is required"))
		return
	}

	analysis, ok := h.analytics.ProductSalesAnalysis(code)
	if !ok {
		errors.WriteError(w, r, h.logger, errors.NotFound("No sales found for product").WithDetails(code))
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	errors.WriteSuccess(w, r, ProductResponse{
		Analysis: analysis,
		Charts: []*charts.Chart{
			charts.MonthlySalesChart(code, analysis.MonthlySales),
			charts.CustomerRankingChart(analysis.Customers, rankingChartLimit),
		},
	})
}

func (h *APIHandlers) HandleTrends(w http.ResponseWriter, r *http.Request) {
	months, err := parseMonths(r.URL.Query().Get("months"))
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	analysis := h.analytics.CustomerTrendAnalysis(months)
	resp := TrendResponse{Analysis: analysis}
	if len(analysis.Increasing) > 0 && len(analysis.Decreasing) > 0 {
		resp.Chart = charts.TrendComparisonChart(analysis.Increasing, analysis.Decreasing)
	}

	w.Header().Set("Cache-Control", cacheControl)
	errors.WriteSuccess(w, r, resp)
}

func (h *APIHandlers) HandleMarketing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cacheControl)
	errors.WriteSuccess(w, r, h.analytics.MarketingRecommendations())
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cacheControl)
	errors.WriteSuccess(w, r, h.analytics.SalesSummary())
}

func parseMonths(raw string) (int, error) {
	if raw == "" {
		return defaultTrendMonths, nil
	}
	months, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ValidationWrap(err, "months must be an integer")
	}
	if months < 1 || months > maxTrendMonths {
		return 0, errors.Validation("months must be between 1 and 60")
	}
	return months, nil
}
