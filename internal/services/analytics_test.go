package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"b2b-analyst/internal/models"
	"b2b-analyst/internal/store"
)

const (
	hanbit  = "한빛전자"
	daesung = "대성기계"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func tx(date time.Time, product, customer string, qty, total, margin float64) models.Transaction {
	return models.Transaction{
		Date:        date,
		ProductName: product,
		Customer:    customer,
		Quantity:    qty,
		Total:       total,
		MarginRate:  margin,
		Year:        date.Year(),
		Month:       int(date.Month()),
		Quarter:     (int(date.Month())-1)/3 + 1,
	}
}

func testTransactions() []models.Transaction {
	return []models.Transaction{
		tx(day(2023, 1, 15), "9322-14 커넥터", hanbit, 10, 1000, 10),
		tx(day(2024, 3, 10), "9322-14 커넥터", daesung, 5, 3000, 20),
		tx(day(2024, 3, 20), "GPL-110GF", hanbit, 2, 500, 30),
		tx(day(2024, 12, 31), "9322-14 커넥터", hanbit, 1, 2500, 40),
	}
}

func testCompanies() store.CompanyTable {
	return store.CompanyTable{
		Rows: []models.Company{
			{Customer: hanbit, Industry: "제조", Grade: "A", Region: "서울", EmployeeCount: 100, HasEmployeeCount: true, GrowthRate: 10, HasGrowthRate: true},
			{Customer: daesung, Industry: "기계", Grade: "", Region: "부산", EmployeeCount: 50, HasEmployeeCount: true, GrowthRate: 5, HasGrowthRate: true},
		},
		HasEmployeeCount: true,
		HasGrowthRate:    true,
	}
}

func newTestAnalytics() *Analytics {
	a := NewAnalytics(nil)
	a.SetData(testTransactions(), testCompanies())
	return a
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics(nil)
	require.NotNil(t, a)
	assert.NotNil(t, a.logger)
	assert.NotNil(t, a.snapshot())
}

func TestAnalytics_SalesSummary(t *testing.T) {
	got := newTestAnalytics().SalesSummary()

	assert.Equal(t, models.SalesSummary{
		TotalRevenue:      7000,
		TotalTransactions: 4,
		UniqueCustomers:   2,
		AvgTransaction:    1750,
		RecentYearRevenue: 6000,
		LatestDate:        "2024-12-31",
	}, got)
}

func TestAnalytics_ProductSalesAnalysis(t *testing.T) {
	got, ok := newTestAnalytics().ProductSalesAnalysis("9322-14")
	require.True(t, ok)

	assert.Equal(t, "9322-14", got.ProductCode)
	assert.Equal(t, int64(16), got.TotalQuantity)
	assert.Equal(t, int64(6500), got.TotalRevenue)
	assert.Equal(t, 23.33, got.AvgMargin)
	assert.Equal(t, 3, got.TransactionCount)

	assert.Equal(t, []models.MonthlySales{
		{Year: 2023, Month: 1, Quantity: 10, Revenue: 1000},
		{Year: 2024, Month: 3, Quantity: 5, Revenue: 3000},
		{Year: 2024, Month: 12, Quantity: 1, Revenue: 2500},
	}, got.MonthlySales)

	assert.Equal(t, []models.ProductCustomer{
		{Customer: hanbit, TotalQuantity: 11, TotalRevenue: 3500, PurchaseCount: 2},
		{Customer: daesung, TotalQuantity: 5, TotalRevenue: 3000, PurchaseCount: 1},
	}, got.Customers)
}

func TestAnalytics_ProductSalesAnalysis_CaseInsensitive(t *testing.T) {
	got, ok := newTestAnalytics().ProductSalesAnalysis("gpl")
	require.True(t, ok)
	assert.Equal(t, 1, got.TransactionCount)
	assert.Equal(t, "gpl", got.ProductCode)
}

func TestAnalytics_ProductSalesAnalysis_NoMatch(t *testing.T) {
	got, ok := newTestAnalytics().ProductSalesAnalysis("0000-00")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestAnalytics_ProductSalesAnalysis_CustomerTieOrder(t *testing.T) {
	a := NewAnalytics(nil)
	a.SetData([]models.Transaction{
		tx(day(2024, 1, 1), "P", hanbit, 1, 100, 0),
		tx(day(2024, 1, 2), "P", daesung, 1, 100, 0),
	}, store.CompanyTable{})

	got, ok := a.ProductSalesAnalysis("P")
	require.True(t, ok)
	require.Len(t, got.Customers, 2)
	assert.Equal(t, daesung, got.Customers[0].Customer)
}

func TestAnalytics_CustomerCharacteristics(t *testing.T) {
	got, ok := newTestAnalytics().CustomerCharacteristics(hanbit, daesung, "없는회사")
	require.True(t, ok)

	assert.Equal(t, 2, got.TotalCustomers)
	assert.Equal(t, map[string]int{"제조": 1, "기계": 1}, got.IndustryDistribution)
	assert.Equal(t, map[string]int{"서울": 1, "부산": 1}, got.LocationDistribution)
	assert.Equal(t, map[string]int{"A": 1}, got.CustomerGradeDistribution)
	assert.Equal(t, int64(75), got.AvgEmployeeCount)
	assert.Equal(t, 7.5, got.AvgGrowthRate)
	require.Len(t, got.Details, 2)
	assert.Equal(t, hanbit, got.Details[0].Customer)
}

func TestAnalytics_CustomerCharacteristics_OptionalColumnsAbsent(t *testing.T) {
	companies := testCompanies()
	companies.HasEmployeeCount = false
	companies.HasGrowthRate = false
	a := NewAnalytics(nil)
	a.SetData(testTransactions(), companies)

	got, ok := a.CustomerCharacteristics(hanbit)
	require.True(t, ok)
	assert.Zero(t, got.AvgEmployeeCount)
	assert.Zero(t, got.AvgGrowthRate)
}

func TestAnalytics_CustomerCharacteristics_BlankCellsSkipped(t *testing.T) {
	companies := testCompanies()
	companies.Rows[0].HasEmployeeCount = false
	companies.Rows[0].HasGrowthRate = false
	a := NewAnalytics(nil)
	a.SetData(testTransactions(), companies)

	got, ok := a.CustomerCharacteristics(hanbit, daesung)
	require.True(t, ok)
	assert.Equal(t, int64(50), got.AvgEmployeeCount)
	assert.Equal(t, 5.0, got.AvgGrowthRate)

	got, ok = a.CustomerCharacteristics(hanbit)
	require.True(t, ok)
	assert.Zero(t, got.AvgEmployeeCount)
	assert.Zero(t, got.AvgGrowthRate)
}

func TestAnalytics_CustomerCharacteristics_NoMatch(t *testing.T) {
	got, ok := newTestAnalytics().CustomerCharacteristics("없는회사")
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok = newTestAnalytics().CustomerCharacteristics()
	assert.False(t, ok)
}

func TestAnalytics_CustomerTrendAnalysis(t *testing.T) {
	got := newTestAnalytics().CustomerTrendAnalysis(6)

	assert.Equal(t, 6, got.Months)
	assert.Equal(t, models.TrendSummary{
		TotalCustomers:  2,
		ActiveCustomers: 1,
		IncreasingCount: 1,
		DecreasingCount: 1,
	}, got.Summary)

	require.Len(t, got.Increasing, 1)
	inc := got.Increasing[0]
	assert.Equal(t, hanbit, inc.Customer)
	assert.Equal(t, int64(2500), inc.RecentRevenue)
	assert.Equal(t, int64(500), inc.PreviousRevenue)
	assert.InDelta(t, 2000.0/501*100, inc.ChangeRate, 1e-9)
	assert.Equal(t, "2023-01-15", inc.FirstPurchase)
	assert.Equal(t, "2024-12-31", inc.LastPurchase)
	assert.Equal(t, 3, inc.PurchaseCount)

	require.Len(t, got.Decreasing, 1)
	assert.Equal(t, daesung, got.Decreasing[0].Customer)
	assert.InDelta(t, -3000.0/3001*100, got.Decreasing[0].ChangeRate, 1e-9)

	require.Len(t, got.Inactive, 1)
	assert.Equal(t, daesung, got.Inactive[0].Customer)
}

func TestAnalytics_CustomerTrendAnalysis_ListsCapped(t *testing.T) {
	var txs []models.Transaction
	for i := range 30 {
		txs = append(txs, tx(day(2024, 8, 1), "P", fmt.Sprintf("고객%02d", i), 1, float64(100+i), 0))
	}
	txs = append(txs, tx(day(2024, 12, 31), "P", "최근고객", 1, 100, 0))
	a := NewAnalytics(nil)
	a.SetData(txs, store.CompanyTable{})

	got := a.CustomerTrendAnalysis(3)

	assert.Len(t, got.Inactive, 20)
	assert.Equal(t, 30, got.Summary.DecreasingCount)
	assert.Len(t, got.Decreasing, 20)
	// Largest lifetime revenue first.
	assert.Equal(t, "고객29", got.Inactive[0].Customer)
}

func trendNames(rows []models.CustomerTrend) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Customer
	}
	return names
}

func TestAnalytics_CustomerTrendAnalysis_Classification(t *testing.T) {
	const customer = "신규상사"
	// The anchor fixes the latest date at 2024-12-31: with 6 months the
	// recent window starts 2024-06-30 and the previous one 2023-12-30.
	anchor := tx(day(2024, 12, 31), "P", "기준고객", 1, 1, 0)

	tests := []struct {
		name       string
		purchases  []models.Transaction
		wantRate   float64
		increasing bool
		decreasing bool
		inactive   bool
	}{
		{
			name:       "first bought in recent window",
			purchases:  []models.Transaction{tx(day(2024, 10, 1), "P", customer, 1, 100, 0)},
			wantRate:   10000,
			increasing: true,
		},
		{
			name:      "only bought before previous window",
			purchases: []models.Transaction{tx(day(2023, 6, 1), "P", customer, 1, 500, 0)},
			wantRate:  0,
			inactive:  true,
		},
		{
			name:       "dropped out of recent window",
			purchases:  []models.Transaction{tx(day(2024, 3, 1), "P", customer, 1, 99, 0)},
			wantRate:   -99,
			decreasing: true,
			inactive:   true,
		},
		{
			name: "flat across both windows",
			purchases: []models.Transaction{
				tx(day(2024, 3, 1), "P", customer, 1, 100, 0),
				tx(day(2024, 10, 1), "P", customer, 1, 100, 0),
			},
			wantRate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalytics(nil)
			a.SetData(append([]models.Transaction{anchor}, tt.purchases...), store.CompanyTable{})

			got := a.CustomerTrendAnalysis(6)

			assert.Equal(t, tt.increasing, slices.Contains(trendNames(got.Increasing), customer), "increasing")
			assert.Equal(t, tt.decreasing, slices.Contains(trendNames(got.Decreasing), customer), "decreasing")
			assert.Equal(t, tt.inactive, slices.Contains(trendNames(got.Inactive), customer), "inactive")

			for _, list := range [][]models.CustomerTrend{got.Increasing, got.Decreasing, got.Inactive} {
				for _, row := range list {
					if row.Customer == customer {
						assert.InDelta(t, tt.wantRate, row.ChangeRate, 1e-9)
					}
				}
			}
		})
	}
}

func TestAnalytics_MarketingRecommendations(t *testing.T) {
	recs := newTestAnalytics().MarketingRecommendations()
	require.Len(t, recs, 3)

	assert.Equal(t, daesung, recs[0].Customer)
	assert.Equal(t, "구매량 감소", recs[0].Reason)
	assert.Equal(t, "감소율: -100.0%", recs[0].Metric)
	assert.Equal(t, models.PriorityHigh, recs[0].Priority)

	assert.Equal(t, daesung, recs[1].Customer)
	assert.Equal(t, "휴면 고객 (과거 우수 고객)", recs[1].Reason)
	assert.Equal(t, "과거 총매출: 3,000원", recs[1].Metric)
	assert.Equal(t, "복귀 유도 프로모션", recs[1].Action)

	assert.Equal(t, hanbit, recs[2].Customer)
	assert.Equal(t, "추가 제품 교차 판매", recs[2].Action)
	assert.Equal(t, models.PriorityMedium, recs[2].Priority)
	assert.Equal(t, int64(4000), recs[2].TotalRevenue)
}

func TestAnalytics_Search(t *testing.T) {
	a := newTestAnalytics()

	assert.Equal(t, []string{"GPL-110GF"}, a.SearchProducts("gpl"))
	assert.Equal(t, []string{"9322-14 커넥터", "GPL-110GF"}, a.SearchProducts(""))
	assert.Equal(t, []string{daesung}, a.SearchCustomers("대성"))
	assert.Equal(t, []string{}, a.SearchCustomers("없음"))
	assert.Equal(t, []string{hanbit, daesung}, a.Customers())
}

func TestAnalytics_SearchLimit(t *testing.T) {
	var txs []models.Transaction
	for i := range 25 {
		txs = append(txs, tx(day(2024, 1, 1), fmt.Sprintf("제품-%d", i), fmt.Sprintf("고객%d", i), 1, 1, 0))
	}
	a := NewAnalytics(nil)
	a.SetData(txs, store.CompanyTable{})

	assert.Len(t, a.SearchProducts("제품"), 20)
	assert.Len(t, a.SearchCustomers(""), 20)
	assert.Len(t, a.Customers(), 25)
}

func TestAnalytics_EmptyData(t *testing.T) {
	a := NewAnalytics(nil)

	assert.Equal(t, models.SalesSummary{}, a.SalesSummary())

	_, ok := a.ProductSalesAnalysis("x")
	assert.False(t, ok)

	trend := a.CustomerTrendAnalysis(6)
	assert.NotNil(t, trend.Increasing)
	assert.NotNil(t, trend.Decreasing)
	assert.NotNil(t, trend.Inactive)
	assert.Empty(t, trend.Inactive)

	assert.Empty(t, a.MarketingRecommendations())
	assert.Empty(t, a.SearchProducts(""))
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := newTestAnalytics()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				a.SetData(testTransactions(), testCompanies())
			}
			_ = a.SalesSummary()
			_, _ = a.ProductSalesAnalysis("9322")
			_ = a.CustomerTrendAnalysis(6)
			_ = a.MarketingRecommendations()
		}()
	}
	wg.Wait()
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		in     time.Time
		months int
		want   time.Time
	}{
		{day(2024, 8, 31), -6, day(2024, 2, 29)},
		{day(2023, 8, 31), -6, day(2023, 2, 28)},
		{day(2024, 1, 15), 1, day(2024, 2, 15)},
		{day(2024, 12, 31), -12, day(2023, 12, 31)},
		{day(2024, 3, 31), -1, day(2024, 2, 29)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, addMonths(tt.in, tt.months), "%s %+d", tt.in.Format(isoDate), tt.months)
	}
}

func TestChangeRate(t *testing.T) {
	assert.Equal(t, 100.0, changeRate(1, 0))
	assert.Equal(t, 0.0, changeRate(5, -1))
	assert.InDelta(t, -49.0, changeRate(50, 99), 1e-9)
}

const salesCSV = "매출일,제품명,거래처,수량,매입단가(3%),판매단가,공급가액,부가세,합계,마진율\n"

func writeSources(t *testing.T, rows string) store.Sources {
	t.Helper()
	dir := t.TempDir()

	sales := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(sales, []byte(salesCSV+rows), 0o644))

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"거래처", "업종", "세부 업종", "고객등급", "시도"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{hanbit, "제조", "전자부품", "A", "서울"}))
	companies := filepath.Join(dir, "companies.xlsx")
	require.NoError(t, f.SaveAs(companies))

	return store.Sources{SalesFile: sales, CompanyFile: companies}
}

func TestAnalytics_LoadAndReload(t *testing.T) {
	src := writeSources(t, "2024-01-01,A,한빛전자,1,1,1,1,1,100,1\n")
	a := NewAnalytics(nil)

	require.NoError(t, a.Load(context.Background(), src))
	assert.Equal(t, int64(100), a.SalesSummary().TotalRevenue)

	require.NoError(t, os.WriteFile(src.SalesFile, []byte(salesCSV+
		"2024-01-01,A,한빛전자,1,1,1,1,1,100,1\n"+
		"2024-02-01,B,한빛전자,1,1,1,1,1,50,1\n"), 0o644))
	require.NoError(t, a.Reload(context.Background()))

	assert.Equal(t, int64(150), a.SalesSummary().TotalRevenue)
	assert.Equal(t, int64(1), a.Stats()["reloads"])
}

func TestAnalytics_ReloadFailureKeepsData(t *testing.T) {
	src := writeSources(t, "2024-01-01,A,한빛전자,1,1,1,1,1,100,1\n")
	a := NewAnalytics(nil)
	require.NoError(t, a.Load(context.Background(), src))

	require.NoError(t, os.WriteFile(src.SalesFile, []byte("broken\n"), 0o644))
	assert.Error(t, a.Reload(context.Background()))

	assert.Equal(t, int64(100), a.SalesSummary().TotalRevenue)
}

func TestAnalytics_DeterministicAcrossLoads(t *testing.T) {
	src := writeSources(t,
		"2023-02-01,9322-14 커넥터,한빛전자,3,1,1,1,1,300,10\n"+
			"2024-03-01,9322-14 커넥터,대성기계,2,1,1,1,1,200,20\n"+
			"2024-03-01,9322-14 커넥터,미래산업,2,1,1,1,1,200,30\n"+
			"2024-11-15,GPL-110GF,한빛전자,1,1,1,1,1,900,40\n")

	first, second := NewAnalytics(nil), NewAnalytics(nil)
	require.NoError(t, first.Load(context.Background(), src))
	require.NoError(t, second.Load(context.Background(), src))

	tests := []struct {
		name string
		run  func(a *Analytics) any
	}{
		{"sales summary", func(a *Analytics) any { return a.SalesSummary() }},
		{"product analysis", func(a *Analytics) any {
			got, _ := a.ProductSalesAnalysis("9322-14")
			return got
		}},
		{"customer characteristics", func(a *Analytics) any {
			got, _ := a.CustomerCharacteristics(hanbit)
			return got
		}},
		{"trend analysis", func(a *Analytics) any { return a.CustomerTrendAnalysis(6) }},
		{"marketing", func(a *Analytics) any { return a.MarketingRecommendations() }},
		{"customer search", func(a *Analytics) any { return a.SearchCustomers("") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.run(first), tt.run(second))
		})
	}
}

func TestAnalytics_ReloadWithoutSources(t *testing.T) {
	assert.ErrorIs(t, NewAnalytics(nil).Reload(context.Background()), ErrNoSources)
}

func BenchmarkAnalytics_CustomerTrendAnalysis(b *testing.B) {
	a := NewAnalytics(nil)
	txs := make([]models.Transaction, 10000)
	for i := range txs {
		txs[i] = tx(day(2024, 1+i%12, 1+i%28), fmt.Sprintf("P%d", i%100), fmt.Sprintf("C%d", i%500), 1, float64(i), 10)
	}
	a.SetData(txs, store.CompanyTable{})

	for b.Loop() {
		_ = a.CustomerTrendAnalysis(6)
	}
}

func BenchmarkAnalytics_ProductSalesAnalysis(b *testing.B) {
	a := NewAnalytics(nil)
	txs := make([]models.Transaction, 10000)
	for i := range txs {
		txs[i] = tx(day(2024, 1+i%12, 1), fmt.Sprintf("P%d", i%100), fmt.Sprintf("C%d", i%500), 1, float64(i), 10)
	}
	a.SetData(txs, store.CompanyTable{})

	for b.Loop() {
		_, _ = a.ProductSalesAnalysis("P1")
	}
}
