package service

import (
	"context"
	"time"

	"go-pos-api/internal/repository"

	"github.com/google/uuid"
)

const maxDashboardDays = 366

type DashboardService interface {
	GetStockMovement(ctx context.Context, tenantID uuid.UUID, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context, tenantID uuid.UUID, days int) (*repository.DashboardStats, error)
}

type dashboardService struct {
	txRepo repository.TransactionRepository
	now    func() time.Time
}

func NewDashboardService(txRepo repository.TransactionRepository) DashboardService {
	return &dashboardService{txRepo: txRepo, now: time.Now}
}

// window returns [now - days, now]; days is clamped to 1..366.
func (s *dashboardService) window(days int) (time.Time, time.Time) {
	if days < 1 {
		days = 7
	}
	if days > maxDashboardDays {
		days = maxDashboardDays
	}
	endDate := s.now()
	return endDate.AddDate(0, 0, -days), endDate
}

func (s *dashboardService) GetStockMovement(ctx context.Context, tenantID uuid.UUID, days int) ([]repository.StockMovementData, error) {
	startDate, endDate := s.window(days)
	return s.txRepo.GetStockMovement(ctx, tenantID, startDate, endDate)
}

func (s *dashboardService) GetDashboardStats(ctx context.Context, tenantID uuid.UUID, days int) (*repository.DashboardStats, error) {
	startDate, endDate := s.window(days)
	return s.txRepo.GetDashboardStats(ctx, tenantID, startDate, endDate)
}
