package models

import "time"

// Transaction is one sales line item. Numeric fields are already cleaned;
// Year, Month and Quarter are derived from Date at load time.
type Transaction struct {
	Date        time.Time
	ProductName string
	Customer    string
	Quantity    float64
	UnitCost    float64
	UnitPrice   float64
	SupplyValue float64
	Tax         float64
	Total       float64
	MarginRate  float64
	Year        int
	Month       int
	Quarter     int
}

// Company is one customer-entity metadata row. Customer is the join key
// against Transaction.Customer and is not guaranteed unique. The Has flags
// are false for blank optional cells, which averages skip.
type Company struct {
	Customer         string
	Industry         string
	IndustryDetail   string
	EmployeeCount    float64
	HasEmployeeCount bool
	Grade            string
	Region           string
	GrowthRate       float64
	HasGrowthRate    bool
}
