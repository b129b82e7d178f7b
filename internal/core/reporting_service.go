package core

import (
	"context"
	"sort"
)

// ReportingService answers the pharmacy's read-only stock and customer queries.
type ReportingService interface {
	// LowStockMedicines lists the pharmacy's medicines at or below their minimum stock.
	LowStockMedicines(ctx context.Context, actor Actor) ([]Medicine, error)
	// CustomerSummaries lists customers with sales at the pharmacy, highest spend first.
	CustomerSummaries(ctx context.Context, actor Actor) ([]CustomerSummary, error)
	// OrderSales lists the sales recorded for an order the actor may view.
	OrderSales(ctx context.Context, orderID int, actor Actor) ([]Sale, error)
}

type reportingService struct {
	store Store
}

func NewReportingService(store Store) ReportingService {
	return &reportingService{store: store}
}

func (s *reportingService) LowStockMedicines(ctx context.Context, actor Actor) ([]Medicine, error) {
	if actor.Role != RolePharmacy {
		return nil, &UnauthorizedError{ActorID: actor.UserID, Required: "pharmacy"}
	}
	meds, err := s.store.ListLowStockMedicines(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(meds, func(i, j int) bool { return meds[i].StockQuantity < meds[j].StockQuantity })
	return meds, nil
}

func (s *reportingService) CustomerSummaries(ctx context.Context, actor Actor) ([]CustomerSummary, error) {
	if actor.Role != RolePharmacy {
		return nil, &UnauthorizedError{ActorID: actor.UserID, Required: "pharmacy"}
	}
	summaries, err := s.store.ListCustomerSummaries(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalSpent.GreaterThan(summaries[j].TotalSpent)
	})
	return summaries, nil
}

func (s *reportingService) OrderSales(ctx context.Context, orderID int, actor Actor) ([]Sale, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, actor) {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	return s.store.ListSalesForOrder(ctx, orderID)
}
