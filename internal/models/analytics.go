package models

type SalesSummary struct {
	TotalRevenue      int64  `json:"total_revenue"`
	TotalTransactions int    `json:"total_transactions"`
	UniqueCustomers   int    `json:"unique_customers"`
	AvgTransaction    int64  `json:"avg_transaction"`
	RecentYearRevenue int64  `json:"recent_year_revenue"`
	LatestDate        string `json:"latest_date"`
}

type MonthlySales struct {
	Year     int   `json:"year"`
	Month    int   `json:"month"`
	Quantity int64 `json:"quantity"`
	Revenue  int64 `json:"revenue"`
}

type ProductCustomer struct {
	Customer      string `json:"customer"`
	TotalQuantity int64  `json:"total_quantity"`
	TotalRevenue  int64  `json:"total_revenue"`
	PurchaseCount int    `json:"purchase_count"`
}

type ProductAnalysis struct {
	ProductCode      string            `json:"product_code"`
	TotalQuantity    int64             `json:"total_quantity"`
	TotalRevenue     int64             `json:"total_revenue"`
	AvgMargin        float64           `json:"avg_margin"`
	MonthlySales     []MonthlySales    `json:"monthly_sales"`
	Customers        []ProductCustomer `json:"customers"`
	TransactionCount int               `json:"transaction_count"`
}

type CompanyDetail struct {
	Customer       string `json:"customer"`
	Industry       string `json:"industry"`
	IndustryDetail string `json:"industry_detail"`
	EmployeeCount  int64  `json:"employee_count"`
	CustomerGrade  string `json:"customer_grade"`
	Region         string `json:"region"`
}

type CustomerCharacteristics struct {
	TotalCustomers            int             `json:"total_customers"`
	IndustryDistribution      map[string]int  `json:"industry_distribution"`
	AvgEmployeeCount          int64           `json:"avg_employee_count"`
	LocationDistribution      map[string]int  `json:"location_distribution"`
	CustomerGradeDistribution map[string]int  `json:"customer_grade_distribution"`
	AvgGrowthRate             float64         `json:"avg_growth_rate"`
	Details                   []CompanyDetail `json:"details"`
}

// CustomerTrend is one customer's row in a trend analysis. ChangeRate is left
// unrounded.
type CustomerTrend struct {
	Customer        string  `json:"customer"`
	TotalRevenue    int64   `json:"total_revenue"`
	FirstPurchase   string  `json:"first_purchase"`
	LastPurchase    string  `json:"last_purchase"`
	PurchaseCount   int     `json:"purchase_count"`
	RecentRevenue   int64   `json:"recent_revenue"`
	PreviousRevenue int64   `json:"previous_revenue"`
	ChangeRate      float64 `json:"change_rate"`
}

type TrendSummary struct {
	TotalCustomers  int `json:"total_customers"`
	ActiveCustomers int `json:"active_customers"`
	IncreasingCount int `json:"increasing_count"`
	DecreasingCount int `json:"decreasing_count"`
}

type TrendAnalysis struct {
	Months     int             `json:"months"`
	Increasing []CustomerTrend `json:"increasing_customers"`
	Decreasing []CustomerTrend `json:"decreasing_customers"`
	Inactive   []CustomerTrend `json:"inactive_customers"`
	Summary    TrendSummary    `json:"summary"`
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
)

type Recommendation struct {
	Customer     string   `json:"customer"`
	Reason       string   `json:"reason"`
	Metric       string   `json:"metric"`
	Action       string   `json:"action"`
	Priority     Priority `json:"priority"`
	TotalRevenue int64    `json:"total_revenue"`
}
