// Package store holds the two read-only tables the analyst works from: sales
// transactions and company metadata.
package store

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"b2b-analyst/internal/models"
)

// Sources names the files a Store is loaded from.
type Sources struct {
	SalesFile    string
	CompanyFile  string
	CompanySheet string
}

// Store is immutable once built. Accessors hand out the backing slices;
// callers must not modify them.
type Store struct {
	transactions     []models.Transaction
	companies        []models.Company
	hasEmployeeCount bool
	hasGrowthRate    bool
	loadedAt         time.Time
	sources          Sources
}

func New(transactions []models.Transaction, companies CompanyTable) *Store {
	return &Store{
		transactions:     transactions,
		companies:        companies.Rows,
		hasEmployeeCount: companies.HasEmployeeCount,
		hasGrowthRate:    companies.HasGrowthRate,
		loadedAt:         time.Now(),
	}
}

// Open loads both sources concurrently. Either failing fails the whole load;
// a context cancelled during the load discards the result.
func Open(ctx context.Context, src Sources) (*Store, error) {
	var (
		txs       []models.Transaction
		companies CompanyTable
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		txs, err = LoadTransactions(src.SalesFile)
		return err
	})
	g.Go(func() error {
		var err error
		companies, err = LoadCompanies(src.CompanyFile, src.CompanySheet)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := New(txs, companies)
	s.sources = src
	return s, nil
}

func (s *Store) Transactions() []models.Transaction { return s.transactions }

func (s *Store) Companies() []models.Company { return s.companies }

func (s *Store) HasEmployeeCount() bool { return s.hasEmployeeCount }

func (s *Store) HasGrowthRate() bool { return s.hasGrowthRate }

func (s *Store) LoadedAt() time.Time { return s.loadedAt }

func (s *Store) Sources() Sources { return s.sources }
