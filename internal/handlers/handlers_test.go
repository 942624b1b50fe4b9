package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2b-analyst/internal/assistant"
	"b2b-analyst/internal/classifier"
	"b2b-analyst/internal/models"
	"b2b-analyst/internal/services"
	"b2b-analyst/internal/store"
)

const (
	hanbit  = "한빛전자"
	daesung = "대성기계"
	product = "9322-14 커넥터"
)

func tx(date time.Time, name, customer string, qty, total float64) models.Transaction {
	return models.Transaction{
		Date:        date,
		ProductName: name,
		Customer:    customer,
		Quantity:    qty,
		Total:       total,
		MarginRate:  20,
		Year:        date.Year(),
		Month:       int(date.Month()),
		Quarter:     (int(date.Month())-1)/3 + 1,
	}
}

type fixture struct {
	analytics *services.Analytics
	agent     *assistant.Agent
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	analytics := services.NewAnalytics(logger)
	utc := time.UTC
	analytics.SetData([]models.Transaction{
		tx(time.Date(2023, 1, 15, 0, 0, 0, 0, utc), product, hanbit, 10, 1000),
		tx(time.Date(2024, 3, 10, 0, 0, 0, 0, utc), product, daesung, 5, 3000),
		tx(time.Date(2024, 3, 20, 0, 0, 0, 0, utc), "GPL-110GF", hanbit, 2, 500),
		tx(time.Date(2024, 12, 31, 0, 0, 0, 0, utc), product, hanbit, 1, 2500),
	}, store.CompanyTable{
		Rows: []models.Company{
			{Customer: hanbit, Industry: "제조", Grade: "A", Region: "서울"},
			{Customer: daesung, Industry: "기계", Grade: "B", Region: "부산"},
		},
	})

	cls := classifier.New(analytics, classifier.DefaultKeywords(), classifier.DefaultRules(), logger)
	agent := assistant.NewAgent(analytics, cls, assistant.NewMockProvider(), assistant.Options{
		HistoryTurns: 10,
		Logger:       logger,
	})

	api := NewAPIHandlers(analytics, agent, "test", logger)
	sse := NewSSEHandlers(analytics, agent, logger)

	r := chi.NewRouter()
	r.Get("/health", api.HandleHealth)
	r.Get("/admin/stats", api.HandleStats)
	r.Post("/api/chat", api.HandleChat)
	r.Post("/api/reset", api.HandleReset)
	r.Get("/api/search/products", api.HandleSearchProducts)
	r.Get("/api/search/customers", api.HandleSearchCustomers)
	r.Get("/api/analytics/product/{code}", api.HandleProductAnalysis)
	r.Get("/api/analytics/trends", api.HandleTrends)
	r.Get("/api/analytics/marketing", api.HandleMarketing)
	r.Get("/api/summary", api.HandleSummary)
	r.Post("/sse/chat", sse.HandleChat)
	r.Get("/sse/summary", sse.HandleSummary)

	return &fixture{analytics: analytics, agent: agent, router: r}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
	Success bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	env := decodeEnvelope(t, rec, &body)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHealth_NoData(t *testing.T) {
	f := newFixture(t)
	f.analytics.SetData(nil, store.CompanyTable{})

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/admin/stats", "")

	var body map[string]any
	decodeEnvelope(t, rec, &body)
	assert.EqualValues(t, 4, body["transactions"])
	assert.Equal(t, "mock", body["llm_provider"])
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", `{"message":"9322-14 제품 판매 추이를 그래프로 보여줘"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	decodeEnvelope(t, rec, &resp)
	assert.Contains(t, resp.Response, "9322-14 제품 판매 추이")
	assert.NotEmpty(t, resp.SessionID)
	var titles []string
	for _, v := range resp.Visualizations {
		titles = append(titles, v.Title)
	}
	assert.Contains(t, titles, "📈 월별 판매 추이")

	t.Run("session continues", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/chat",
			`{"message":"고마워","session_id":"`+resp.SessionID+`"}`)
		var next ChatResponse
		decodeEnvelope(t, rec, &next)
		assert.Equal(t, resp.SessionID, next.SessionID)
		assert.Contains(t, next.Response, "이전 대화 2건")
	})
}

func TestChat_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing message", `{}`, "VALIDATION_ERROR"},
		{"blank message", `{"message":"   "}`, "VALIDATION_ERROR"},
		{"malformed json", `{"message":`, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t)

	result, err := f.agent.Chat(t.Context(), "", "안녕하세요")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/reset", `{"session_id":"`+result.SessionID+`"}`)
	var body map[string]any
	decodeEnvelope(t, rec, &body)
	assert.Equal(t, true, body["cleared"])

	rec = f.do(t, http.MethodPost, "/api/reset", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	var resp SearchResponse
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/search/products?keyword=gpl", ""), &resp)
	assert.Equal(t, []string{"GPL-110GF"}, resp.Results)

	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/search/customers?keyword=", ""), &resp)
	assert.ElementsMatch(t, []string{hanbit, daesung}, resp.Results)
}

func TestProductAnalysis(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/analytics/product/9322-14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cacheControl, rec.Header().Get("Cache-Control"))

	var resp struct {
		Analysis models.ProductAnalysis `json:"analysis"`
		Charts   []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"charts"`
	}
	decodeEnvelope(t, rec, &resp)
	assert.EqualValues(t, 16, resp.Analysis.TotalQuantity)
	require.Len(t, resp.Charts, 2)
	assert.Equal(t, "line", resp.Charts[0].Type)
	assert.Equal(t, "bar", resp.Charts[1].Type)

	rec = f.do(t, http.MethodGet, "/api/analytics/product/ZZZ-999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrends(t *testing.T) {
	f := newFixture(t)

	var resp struct {
		Analysis models.TrendAnalysis `json:"analysis"`
		Chart    *struct {
			Type string `json:"type"`
		} `json:"chart"`
	}
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/analytics/trends", ""), &resp)
	assert.Equal(t, 6, resp.Analysis.Months)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, "comparison", resp.Chart.Type)

	for _, months := range []string{"0", "61", "abc"} {
		rec := f.do(t, http.MethodGet, "/api/analytics/trends?months="+months, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, months)
	}
}

func TestMarketingAndSummary(t *testing.T) {
	f := newFixture(t)

	var recs []models.Recommendation
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/analytics/marketing", ""), &recs)
	assert.NotEmpty(t, recs)

	var summary models.SalesSummary
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/summary", ""), &summary)
	assert.EqualValues(t, 7000, summary.TotalRevenue)
	assert.Equal(t, 2, summary.UniqueCustomers)
}

func TestParseMonths(t *testing.T) {
	m, err := parseMonths("")
	require.NoError(t, err)
	assert.Equal(t, defaultTrendMonths, m)

	m, err = parseMonths("12")
	require.NoError(t, err)
	assert.Equal(t, 12, m)

	_, err = parseMonths("-1")
	assert.Error(t, err)
}

func TestSSEChat(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/sse/chat", `{"message":"대성기계 고객 정보 알려줘","sessionId":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "datastar-patch-signals")
	assert.Contains(t, body, pendingText)
	assert.Contains(t, body, "대성기계 고객 정보 알려줘")
	assert.Contains(t, body, "sessionId")
}

func TestSSEChat_EmptyMessage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/sse/chat", `{"message":"  "}`)
	body := rec.Body.String()
	assert.Contains(t, body, emptyMessageText)
	assert.NotContains(t, body, pendingText)
}

func TestSSESummary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/sse/summary", "")
	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-signals")
	assert.Contains(t, body, "7,000원")
}
