package assistant

import (
	"context"
	"sync"

	"b2b-analyst/internal/classifier"
	"b2b-analyst/internal/models"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []Request
	reply    string
	err      error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) last() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeSummary struct{}

func (fakeSummary) SalesSummary() models.SalesSummary {
	return models.SalesSummary{
		TotalRevenue:      1234567,
		TotalTransactions: 1200,
		UniqueCustomers:   42,
		AvgTransaction:    1028,
		RecentYearRevenue: 500000,
		LatestDate:        "2024-12-31",
	}
}

type fakeAnalyzer struct {
	result models.AnalysisResult
}

func (f fakeAnalyzer) Analyze(text string) (models.AnalysisResult, classifier.Query) {
	if f.result == nil {
		return models.AnalysisResult{}, classifier.Query{Text: text}
	}
	return f.result, classifier.Query{Text: text}
}
