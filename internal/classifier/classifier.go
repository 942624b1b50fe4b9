// Package classifier turns a free-text question into the set of aggregations
// needed to answer it.
package classifier

import (
	"log/slog"
	"strings"

	"b2b-analyst/internal/models"
)

const (
	trendWindowMonths = 6
	topCustomers      = 20
)

// Engine is the slice of the analytics service the rules call into.
type Engine interface {
	ProductSalesAnalysis(code string) (*models.ProductAnalysis, bool)
	CustomerCharacteristics(names ...string) (*models.CustomerCharacteristics, bool)
	CustomerTrendAnalysis(months int) *models.TrendAnalysis
	MarketingRecommendations() []models.Recommendation
	Customers() []string
}

// Rule is one dispatch decision: when Match holds for a query, Apply adds its
// results.
type Rule struct {
	Name  string
	Match func(q Query) bool
	Apply func(q Query, e Engine, result models.AnalysisResult)
}

// DefaultRules returns the dispatch policy in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "product", Match: matchProduct, Apply: applyProduct},
		{Name: "trend", Match: matchTrend, Apply: applyTrend},
		{Name: "marketing", Match: matchMarketing, Apply: applyMarketing},
		{Name: "customer", Match: matchCustomer, Apply: applyCustomer},
	}
}

func matchProduct(q Query) bool { return len(q.Codes) > 0 || q.ProductIntent }

func applyProduct(q Query, e Engine, result models.AnalysisResult) {
	if len(q.Codes) == 0 {
		result[models.KeyHint] = models.HintProductSearchNeeded
		return
	}
	for _, code := range q.Codes {
		analysis, ok := e.ProductSalesAnalysis(code)
		if !ok {
			continue
		}
		key := SafeKey(code)
		result[models.PrefixProduct+key] = analysis

		buyers := head(analysis.Customers, topCustomers)
		if len(buyers) == 0 {
			continue
		}
		names := make([]string, len(buyers))
		for i, c := range buyers {
			names[i] = c.Customer
		}
		if chars, ok := e.CustomerCharacteristics(names...); ok {
			result[models.PrefixCustomersOf+key] = chars
		}
	}
}

// Visualisation requests always pull trend data.
func matchTrend(q Query) bool { return q.TrendIntent || q.Visualization }

func applyTrend(_ Query, e Engine, result models.AnalysisResult) {
	result[models.KeyTrendAnalysis] = e.CustomerTrendAnalysis(trendWindowMonths)
}

func matchMarketing(q Query) bool { return q.MarketingIntent }

func applyMarketing(_ Query, e Engine, result models.AnalysisResult) {
	result[models.KeyMarketingRecommendations] = e.MarketingRecommendations()
}

func matchCustomer(q Query) bool { return q.CustomerIntent }

func applyCustomer(q Query, e Engine, result models.AnalysisResult) {
	var mentioned []string
	for _, name := range e.Customers() {
		if name != "" && strings.Contains(q.Text, name) {
			mentioned = append(mentioned, name)
		}
	}
	if len(mentioned) == 0 {
		return
	}
	if chars, ok := e.CustomerCharacteristics(mentioned...); ok {
		result[models.KeySpecificCustomers] = chars
	}
}

type Classifier struct {
	engine   Engine
	keywords Keywords
	rules    []Rule
	logger   *slog.Logger
}

// New builds a classifier over engine. Empty keyword categories fall back to
// the defaults; nil rules means DefaultRules.
func New(engine Engine, kw Keywords, rules []Rule, logger *slog.Logger) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		engine:   engine,
		keywords: kw.withDefaults(),
		rules:    rules,
		logger:   logger,
	}
}

// Analyze runs every matching rule against text. The result may be empty.
func (c *Classifier) Analyze(text string) (models.AnalysisResult, Query) {
	q := ParseQuery(text, c.keywords)
	result := make(models.AnalysisResult)

	var fired []string
	for _, r := range c.rules {
		if !r.Match(q) {
			continue
		}
		r.Apply(q, c.engine, result)
		fired = append(fired, r.Name)
	}

	c.logger.Debug("query classified",
		"codes", q.Codes,
		"rules", fired,
		"results", len(result))
	return result, q
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
