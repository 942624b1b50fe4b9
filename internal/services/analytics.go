package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"b2b-analyst/internal/models"
	"b2b-analyst/internal/store"
)

const (
	searchLimit       = 20
	trendListLimit    = 20
	trendThreshold    = 10.0
	summaryWindow     = 12
	marketingWindow   = 6
	marketingDecrease = 5
	marketingInactive = 5
	marketingIncrease = 3
	isoDate           = "2006-01-02"
)

var ErrNoSources = errors.New("no data sources configured")

// Analytics answers aggregation queries over the current store. The store is
// swapped whole on reload; every query reads a single snapshot.
type Analytics struct {
	current atomic.Pointer[store.Store]
	sources store.Sources
	reloads atomic.Int64
	logger  *slog.Logger
}

func NewAnalytics(logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analytics{logger: logger}
	a.current.Store(store.New(nil, store.CompanyTable{}))
	return a
}

// SetData replaces the store with in-memory tables.
func (a *Analytics) SetData(transactions []models.Transaction, companies store.CompanyTable) {
	a.current.Store(store.New(transactions, companies))
}

// Load reads both sources and installs them. It is used once at startup.
func (a *Analytics) Load(ctx context.Context, src store.Sources) error {
	a.sources = src
	start := time.Now()
	a.logger.Info("loading data", "sales_file", src.SalesFile, "company_file", src.CompanyFile)

	s, err := store.Open(ctx, src)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	a.current.Store(s)

	a.logger.Info("data load complete",
		"transactions", len(s.Transactions()),
		"companies", len(s.Companies()),
		"duration", time.Since(start))
	return nil
}

// Reload loads the configured sources again and swaps them in only on
// success. In-flight queries keep the store they started with.
func (a *Analytics) Reload(ctx context.Context) error {
	if a.sources.SalesFile == "" {
		return ErrNoSources
	}
	s, err := store.Open(ctx, a.sources)
	if err != nil {
		return fmt.Errorf("reload data: %w", err)
	}
	a.current.Store(s)
	a.reloads.Add(1)
	a.logger.Info("data reloaded",
		"transactions", len(s.Transactions()),
		"companies", len(s.Companies()))
	return nil
}

func (a *Analytics) snapshot() *store.Store {
	return a.current.Load()
}

func (a *Analytics) SalesSummary() models.SalesSummary {
	txs := a.snapshot().Transactions()
	if len(txs) == 0 {
		return models.SalesSummary{}
	}

	var total float64
	customers := make(map[string]struct{})
	latest := latestDate(txs)
	yearAgo := addMonths(latest, -summaryWindow)
	var recent float64

	for _, tx := range txs {
		total += tx.Total
		customers[tx.Customer] = struct{}{}
		if !tx.Date.Before(yearAgo) {
			recent += tx.Total
		}
	}

	return models.SalesSummary{
		TotalRevenue:      int64(total),
		TotalTransactions: len(txs),
		UniqueCustomers:   len(customers),
		AvgTransaction:    int64(total / float64(len(txs))),
		RecentYearRevenue: int64(recent),
		LatestDate:        latest.Format(isoDate),
	}
}

type productCustomerAgg struct {
	name     string
	quantity float64
	revenue  float64
	count    int
}

type monthAgg struct {
	year, month int
	quantity    float64
	revenue     float64
}

// ProductSalesAnalysis aggregates every transaction whose product name
// contains code, ignoring case. ok is false when nothing matches.
func (a *Analytics) ProductSalesAnalysis(code string) (*models.ProductAnalysis, bool) {
	needle := strings.ToLower(code)

	var (
		quantity, revenue, margin float64
		matched                   int
	)
	monthly := make(map[[2]int]*monthAgg)
	customers := make(map[string]*productCustomerAgg)

	for _, tx := range a.snapshot().Transactions() {
		if !strings.Contains(strings.ToLower(tx.ProductName), needle) {
			continue
		}
		matched++
		quantity += tx.Quantity
		revenue += tx.Total
		margin += tx.MarginRate

		m := monthly[[2]int{tx.Year, tx.Month}]
		if m == nil {
			m = &monthAgg{year: tx.Year, month: tx.Month}
			monthly[[2]int{tx.Year, tx.Month}] = m
		}
		m.quantity += tx.Quantity
		m.revenue += tx.Total

		c := customers[tx.Customer]
		if c == nil {
			c = &productCustomerAgg{name: tx.Customer}
			customers[tx.Customer] = c
		}
		c.quantity += tx.Quantity
		c.revenue += tx.Total
		c.count++
	}

	if matched == 0 {
		return nil, false
	}

	series := make([]models.MonthlySales, 0, len(monthly))
	for _, m := range monthly {
		series = append(series, models.MonthlySales{
			Year:     m.year,
			Month:    m.month,
			Quantity: int64(m.quantity),
			Revenue:  int64(m.revenue),
		})
	}
	slices.SortFunc(series, func(x, y models.MonthlySales) int {
		if c := cmp.Compare(x.Year, y.Year); c != 0 {
			return c
		}
		return cmp.Compare(x.Month, y.Month)
	})

	ranked := make([]*productCustomerAgg, 0, len(customers))
	for _, c := range customers {
		ranked = append(ranked, c)
	}
	slices.SortFunc(ranked, func(x, y *productCustomerAgg) int { return strings.Compare(x.name, y.name) })
	slices.SortStableFunc(ranked, func(x, y *productCustomerAgg) int { return cmp.Compare(y.revenue, x.revenue) })

	list := make([]models.ProductCustomer, len(ranked))
	for i, c := range ranked {
		list[i] = models.ProductCustomer{
			Customer:      c.name,
			TotalQuantity: int64(c.quantity),
			TotalRevenue:  int64(c.revenue),
			PurchaseCount: c.count,
		}
	}

	return &models.ProductAnalysis{
		ProductCode:      code,
		TotalQuantity:    int64(quantity),
		TotalRevenue:     int64(revenue),
		AvgMargin:        round2(margin / float64(matched)),
		MonthlySales:     series,
		Customers:        list,
		TransactionCount: matched,
	}, true
}

// CustomerCharacteristics profiles the companies whose name exactly matches
// one of names. Names without a company row are dropped silently. ok is false
// when no company matches.
func (a *Analytics) CustomerCharacteristics(names ...string) (*models.CustomerCharacteristics, bool) {
	s := a.snapshot()
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	var matched []models.Company
	for _, c := range s.Companies() {
		if _, ok := wanted[c.Customer]; ok {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, false
	}

	result := &models.CustomerCharacteristics{
		TotalCustomers:            len(matched),
		IndustryDistribution:      make(map[string]int),
		LocationDistribution:      make(map[string]int),
		CustomerGradeDistribution: make(map[string]int),
		Details:                   make([]models.CompanyDetail, 0, len(matched)),
	}

	var (
		employees, growth          float64
		employeeCount, growthCount int
	)
	for _, c := range matched {
		countValue(result.IndustryDistribution, c.Industry)
		countValue(result.LocationDistribution, c.Region)
		countValue(result.CustomerGradeDistribution, c.Grade)
		if c.HasEmployeeCount {
			employees += c.EmployeeCount
			employeeCount++
		}
		if c.HasGrowthRate {
			growth += c.GrowthRate
			growthCount++
		}

		result.Details = append(result.Details, models.CompanyDetail{
			Customer:       c.Customer,
			Industry:       c.Industry,
			IndustryDetail: c.IndustryDetail,
			EmployeeCount:  int64(c.EmployeeCount),
			CustomerGrade:  c.Grade,
			Region:         c.Region,
		})
	}

	// Blank cells are left out of the means. With the column absent or every
	// cell blank the mean is 0.
	if s.HasEmployeeCount() && employeeCount > 0 {
		result.AvgEmployeeCount = int64(employees / float64(employeeCount))
	}
	if s.HasGrowthRate() && growthCount > 0 {
		result.AvgGrowthRate = round2(growth / float64(growthCount))
	}
	return result, true
}

type customerTrendAgg struct {
	name        string
	total       float64
	first, last time.Time
	count       int
	recent      float64
	previous    float64
	changeRate  float64
}

// CustomerTrendAnalysis compares each customer's revenue in the trailing
// window of months against the window before it.
func (a *Analytics) CustomerTrendAnalysis(months int) *models.TrendAnalysis {
	txs := a.snapshot().Transactions()
	result := &models.TrendAnalysis{
		Months:     months,
		Increasing: []models.CustomerTrend{},
		Decreasing: []models.CustomerTrend{},
		Inactive:   []models.CustomerTrend{},
	}
	if len(txs) == 0 {
		return result
	}

	latest := latestDate(txs)
	cutoff := addMonths(latest, -months)
	previousCutoff := addMonths(cutoff, -months)

	byCustomer := make(map[string]*customerTrendAgg)
	for _, tx := range txs {
		c := byCustomer[tx.Customer]
		if c == nil {
			c = &customerTrendAgg{name: tx.Customer, first: tx.Date, last: tx.Date}
			byCustomer[tx.Customer] = c
		}
		c.total += tx.Total
		c.count++
		if tx.Date.Before(c.first) {
			c.first = tx.Date
		}
		if tx.Date.After(c.last) {
			c.last = tx.Date
		}
		switch {
		case !tx.Date.Before(cutoff):
			c.recent += tx.Total
		case !tx.Date.Before(previousCutoff):
			c.previous += tx.Total
		}
	}

	rows := make([]*customerTrendAgg, 0, len(byCustomer))
	for _, c := range byCustomer {
		c.changeRate = changeRate(c.recent, c.previous)
		rows = append(rows, c)
	}
	slices.SortFunc(rows, func(x, y *customerTrendAgg) int { return strings.Compare(x.name, y.name) })

	var increasing, decreasing, inactive []*customerTrendAgg
	for _, c := range rows {
		if c.changeRate > trendThreshold {
			increasing = append(increasing, c)
		}
		if c.changeRate < -trendThreshold {
			decreasing = append(decreasing, c)
		}
		if c.recent == 0 {
			inactive = append(inactive, c)
		}
		if c.recent > 0 {
			result.Summary.ActiveCustomers++
		}
	}
	result.Summary.TotalCustomers = len(rows)
	result.Summary.IncreasingCount = len(increasing)
	result.Summary.DecreasingCount = len(decreasing)

	slices.SortStableFunc(increasing, func(x, y *customerTrendAgg) int { return cmp.Compare(y.changeRate, x.changeRate) })
	slices.SortStableFunc(decreasing, func(x, y *customerTrendAgg) int { return cmp.Compare(x.changeRate, y.changeRate) })
	slices.SortStableFunc(inactive, func(x, y *customerTrendAgg) int { return cmp.Compare(y.total, x.total) })

	result.Increasing = toTrendRows(increasing, trendListLimit)
	result.Decreasing = toTrendRows(decreasing, trendListLimit)
	result.Inactive = toTrendRows(inactive, trendListLimit)
	return result
}

// changeRate is the percent change with a +1 offset on the denominator so
// customers new to the recent window do not divide by zero.
func changeRate(recent, previous float64) float64 {
	denominator := previous + 1
	if denominator == 0 {
		return 0
	}
	return (recent - previous) / denominator * 100
}

func toTrendRows(rows []*customerTrendAgg, limit int) []models.CustomerTrend {
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]models.CustomerTrend, len(rows))
	for i, c := range rows {
		out[i] = models.CustomerTrend{
			Customer:        c.name,
			TotalRevenue:    int64(c.total),
			FirstPurchase:   c.first.Format(isoDate),
			LastPurchase:    c.last.Format(isoDate),
			PurchaseCount:   c.count,
			RecentRevenue:   int64(c.recent),
			PreviousRevenue: int64(c.previous),
			ChangeRate:      c.changeRate,
		}
	}
	return out
}

// MarketingRecommendations applies the fixed targeting policy over a
// six-month trend: declining customers, then dormant high-value customers,
// then growing customers.
func (a *Analytics) MarketingRecommendations() []models.Recommendation {
	trend := a.CustomerTrendAnalysis(marketingWindow)
	recs := make([]models.Recommendation, 0, marketingDecrease+marketingInactive+marketingIncrease)
	won := message.NewPrinter(language.Korean)

	for _, c := range head(trend.Decreasing, marketingDecrease) {
		recs = append(recs, models.Recommendation{
			Customer:     c.Customer,
			Reason:       "구매량 감소",
			Metric:       fmt.Sprintf("감소율: %.1f%%", c.ChangeRate),
			Action:       "재활성화 마케팅",
			Priority:     models.PriorityHigh,
			TotalRevenue: c.TotalRevenue,
		})
	}
	for _, c := range head(trend.Inactive, marketingInactive) {
		recs = append(recs, models.Recommendation{
			Customer:     c.Customer,
			Reason:       "휴면 고객 (과거 우수 고객)",
			Metric:       won.Sprintf("과거 총매출: %d원", c.TotalRevenue),
			Action:       "복귀 유도 프로모션",
			Priority:     models.PriorityHigh,
			TotalRevenue: c.TotalRevenue,
		})
	}
	for _, c := range head(trend.Increasing, marketingIncrease) {
		recs = append(recs, models.Recommendation{
			Customer:     c.Customer,
			Reason:       "구매량 지속 증가",
			Metric:       fmt.Sprintf("증가율: %.1f%%", c.ChangeRate),
			Action:       "추가 제품 교차 판매",
			Priority:     models.PriorityMedium,
			TotalRevenue: c.TotalRevenue,
		})
	}
	return recs
}

// SearchProducts returns up to 20 distinct product names containing keyword,
// in the order they first appear.
func (a *Analytics) SearchProducts(keyword string) []string {
	return a.search(keyword, func(tx models.Transaction) string { return tx.ProductName }, searchLimit)
}

// SearchCustomers returns up to 20 distinct customer names containing keyword.
func (a *Analytics) SearchCustomers(keyword string) []string {
	return a.search(keyword, func(tx models.Transaction) string { return tx.Customer }, searchLimit)
}

// Customers returns every distinct customer name in first-seen order.
func (a *Analytics) Customers() []string {
	return a.search("", func(tx models.Transaction) string { return tx.Customer }, 0)
}

func (a *Analytics) search(keyword string, field func(models.Transaction) string, limit int) []string {
	needle := strings.ToLower(keyword)
	seen := make(map[string]struct{})
	out := []string{}
	for _, tx := range a.snapshot().Transactions() {
		value := field(tx)
		if _, dup := seen[value]; dup {
			continue
		}
		if !strings.Contains(strings.ToLower(value), needle) {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Counts reports the size of both tables in the current snapshot.
func (a *Analytics) Counts() (transactions, companies int) {
	s := a.snapshot()
	return len(s.Transactions()), len(s.Companies())
}

func (a *Analytics) Stats() map[string]any {
	s := a.snapshot()
	src := s.Sources()
	return map[string]any{
		"transactions": len(s.Transactions()),
		"companies":    len(s.Companies()),
		"loaded_at":    s.LoadedAt(),
		"reloads":      a.reloads.Load(),
		"sales_file":   src.SalesFile,
		"company_file": src.CompanyFile,
	}
}

func latestDate(txs []models.Transaction) time.Time {
	latest := txs[0].Date
	for _, tx := range txs[1:] {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	return latest
}

// addMonths moves t by calendar months, clamping the day to the end of the
// target month (Aug 31 minus 6 months is Feb 28 or 29).
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func countValue(dist map[string]int, value string) {
	if value == "" {
		return
	}
	dist[value]++
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
