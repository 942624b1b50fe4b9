// Package charts turns analysis results into chart payloads the front end
// renders client side.
package charts

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"b2b-analyst/internal/models"
)

type Type string

const (
	TypeLine       Type = "line"
	TypeBar        Type = "bar"
	TypePie        Type = "pie"
	TypeTable      Type = "table"
	TypeComparison Type = "comparison"
)

// Field selects which part of a result a suggestion draws.
type Field string

const (
	FieldMonthlySales    Field = "monthly_sales"
	FieldCustomers       Field = "customers"
	FieldIncreasing      Field = "increasing_customers"
	FieldDecreasing      Field = "decreasing_customers"
	FieldIndustry        Field = "industry_distribution"
	FieldLocation        Field = "location_distribution"
	FieldRecommendations Field = "recommendations"
)

const (
	customerRankingLimit = 15
	trendChartLimit      = 10
)

// Suggestion names a chart that can be drawn from one result key.
type Suggestion struct {
	Type  Type   `json:"type"`
	Title string `json:"title"`
	Key   string `json:"data_key"`
	Field Field  `json:"field"`
	Limit int    `json:"limit,omitempty"`
}

type Chart struct {
	Type  Type   `json:"type"`
	Title string `json:"title"`
	Data  any    `json:"data"`
}

// Visualization pairs a chart with its display title.
type Visualization struct {
	Title string `json:"title"`
	Chart *Chart `json:"chart"`
}

// SeriesData backs line and bar charts.
type SeriesData struct {
	X      []string  `json:"x"`
	Y      []float64 `json:"y"`
	XLabel string    `json:"x_label"`
	YLabel string    `json:"y_label"`
}

// LabeledValues backs pie charts and each side of a comparison.
type LabeledValues struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type TableData struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type ComparisonData struct {
	Increasing LabeledValues `json:"increasing"`
	Decreasing LabeledValues `json:"decreasing"`
}

// Suggest lists the charts available for result. Keys are visited in sorted
// order so the output is stable.
func Suggest(result models.AnalysisResult) []Suggestion {
	var out []Suggestion
	for _, key := range slices.Sorted(maps.Keys(result)) {
		switch {
		case models.IsProductKey(key):
			out = append(out,
				Suggestion{Type: TypeLine, Title: "📈 월별 판매 추이", Key: key, Field: FieldMonthlySales},
				Suggestion{Type: TypeBar, Title: fmt.Sprintf("🏆 주요 구매 고객 TOP %d", customerRankingLimit), Key: key, Field: FieldCustomers, Limit: customerRankingLimit},
			)
		case key == models.KeyTrendAnalysis:
			out = append(out,
				Suggestion{Type: TypeBar, Title: fmt.Sprintf("📈 구매량 증가 고객 TOP %d", trendChartLimit), Key: key, Field: FieldIncreasing, Limit: trendChartLimit},
				Suggestion{Type: TypeBar, Title: fmt.Sprintf("📉 구매량 감소 고객 TOP %d", trendChartLimit), Key: key, Field: FieldDecreasing, Limit: trendChartLimit},
			)
		case models.IsCustomersOfKey(key):
			out = append(out,
				Suggestion{Type: TypePie, Title: "🏢 고객 업종 분포", Key: key, Field: FieldIndustry},
				Suggestion{Type: TypePie, Title: "📍 고객 지역 분포", Key: key, Field: FieldLocation},
			)
		case key == models.KeyMarketingRecommendations:
			out = append(out,
				Suggestion{Type: TypeTable, Title: "🎯 마케팅 추천 대상", Key: key, Field: FieldRecommendations},
			)
		}
	}
	return out
}

// Build draws one suggestion. ok is false when the result has no usable data
// for it.
func Build(s Suggestion, result models.AnalysisResult) (*Chart, bool) {
	var chart *Chart

	switch s.Field {
	case FieldMonthlySales:
		p, ok := result[s.Key].(*models.ProductAnalysis)
		if !ok || len(p.MonthlySales) == 0 {
			return nil, false
		}
		chart = MonthlySalesChart(p.ProductCode, p.MonthlySales)
	case FieldCustomers:
		p, ok := result[s.Key].(*models.ProductAnalysis)
		if !ok || len(p.Customers) == 0 {
			return nil, false
		}
		chart = CustomerRankingChart(p.Customers, limitOr(s.Limit, customerRankingLimit))
	case FieldIncreasing, FieldDecreasing:
		t, ok := result[s.Key].(*models.TrendAnalysis)
		if !ok {
			return nil, false
		}
		rows := t.Increasing
		if s.Field == FieldDecreasing {
			rows = t.Decreasing
		}
		if len(rows) == 0 {
			return nil, false
		}
		chart = trendBarChart(rows, limitOr(s.Limit, trendChartLimit))
	case FieldIndustry, FieldLocation:
		c, ok := result[s.Key].(*models.CustomerCharacteristics)
		if !ok {
			return nil, false
		}
		dist := c.IndustryDistribution
		if s.Field == FieldLocation {
			dist = c.LocationDistribution
		}
		if len(dist) == 0 {
			return nil, false
		}
		chart = DistributionChart(s.Title, dist)
	case FieldRecommendations:
		recs, ok := result[s.Key].([]models.Recommendation)
		if !ok || len(recs) == 0 {
			return nil, false
		}
		chart = RecommendationTable(recs)
	default:
		return nil, false
	}

	if s.Title != "" {
		chart.Title = s.Title
	}
	return chart, true
}

// Visualize suggests and builds every chart for result, skipping the ones
// without data.
func Visualize(result models.AnalysisResult) []Visualization {
	out := []Visualization{}
	for _, s := range Suggest(result) {
		if chart, ok := Build(s, result); ok {
			out = append(out, Visualization{Title: s.Title, Chart: chart})
		}
	}
	return out
}

// MonthlySalesChart plots monthly revenue for one product.
func MonthlySalesChart(code string, monthly []models.MonthlySales) *Chart {
	data := SeriesData{
		X:      make([]string, len(monthly)),
		Y:      make([]float64, len(monthly)),
		XLabel: "판매월",
		YLabel: "판매금액",
	}
	for i, m := range monthly {
		data.X[i] = fmt.Sprintf("%04d-%02d", m.Year, m.Month)
		data.Y[i] = float64(m.Revenue)
	}
	return &Chart{Type: TypeLine, Title: code + " 월별 판매 추이", Data: data}
}

// CustomerRankingChart plots the first limit customers by revenue. Customers
// are expected in ranking order.
func CustomerRankingChart(customers []models.ProductCustomer, limit int) *Chart {
	customers = head(customers, limit)
	data := SeriesData{
		X:      make([]string, len(customers)),
		Y:      make([]float64, len(customers)),
		XLabel: "고객명",
		YLabel: "총구매금액",
	}
	for i, c := range customers {
		data.X[i] = c.Customer
		data.Y[i] = float64(c.TotalRevenue)
	}
	return &Chart{Type: TypeBar, Title: fmt.Sprintf("TOP %d 고객", limit), Data: data}
}

// TrendComparisonChart puts the top ten increasing and decreasing customers
// side by side.
func TrendComparisonChart(increasing, decreasing []models.CustomerTrend) *Chart {
	return &Chart{
		Type:  TypeComparison,
		Title: "구매 트렌드 비교",
		Data: ComparisonData{
			Increasing: trendValues(head(increasing, trendChartLimit)),
			Decreasing: trendValues(head(decreasing, trendChartLimit)),
		},
	}
}

// DistributionChart draws a count map as a pie, largest slice first.
func DistributionChart(title string, dist map[string]int) *Chart {
	labels := slices.Sorted(maps.Keys(dist))
	slices.SortStableFunc(labels, func(a, b string) int { return cmp.Compare(dist[b], dist[a]) })

	data := LabeledValues{
		Labels: labels,
		Values: make([]float64, len(labels)),
	}
	for i, l := range labels {
		data.Values[i] = float64(dist[l])
	}
	return &Chart{Type: TypePie, Title: title, Data: data}
}

func RecommendationTable(recs []models.Recommendation) *Chart {
	data := TableData{
		Columns: []string{"거래처", "사유", "지표", "실행 방안", "우선순위", "총매출"},
		Rows:    make([][]any, len(recs)),
	}
	for i, r := range recs {
		data.Rows[i] = []any{r.Customer, r.Reason, r.Metric, r.Action, string(r.Priority), r.TotalRevenue}
	}
	return &Chart{Type: TypeTable, Title: "마케팅 추천 대상", Data: data}
}

func trendBarChart(rows []models.CustomerTrend, limit int) *Chart {
	rows = head(rows, limit)
	v := trendValues(rows)
	return &Chart{
		Type: TypeBar,
		Data: SeriesData{X: v.Labels, Y: v.Values, XLabel: "거래처", YLabel: "증감율"},
	}
}

func trendValues(rows []models.CustomerTrend) LabeledValues {
	v := LabeledValues{
		Labels: make([]string, len(rows)),
		Values: make([]float64, len(rows)),
	}
	for i, r := range rows {
		v.Labels[i] = r.Customer
		v.Values[i] = r.ChangeRate
	}
	return v
}

func limitOr(limit, fallback int) int {
	if limit > 0 {
		return limit
	}
	return fallback
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
