// Package reporting answers sales questions over the order ledger. Only
// completed orders count; an empty ledger yields zero totals, never errors.
package reporting

import (
	"context"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

type Service struct {
	reports repository.ReportRepository
}

func NewService(reports repository.ReportRepository) *Service {
	return &Service{reports: reports}
}

type Summary struct {
	TotalIncome float64 `json:"total_income"`
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	total, err := s.reports.TotalIncome(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{TotalIncome: total}, nil
}

func (s *Service) ProductSales(ctx context.Context) ([]domain.ProductSales, error) {
	out, err := s.reports.UnitsSold(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ProductSales{}
	}
	return out, nil
}

func (s *Service) Monthly(ctx context.Context) ([]domain.MonthlyBucket, error) {
	out, err := s.reports.MonthlySummary(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.MonthlyBucket{}
	}
	return out, nil
}
