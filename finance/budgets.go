package finance

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/lMazer/pocket-finance-dashboard/api"
)

// BudgetsService issues budget CRUD calls.
type BudgetsService struct {
	api *api.Client
}

// NewBudgetsService creates the service on top of the shared API client.
func NewBudgetsService(apiClient *api.Client) *BudgetsService {
	return &BudgetsService{api: apiClient}
}

// List fetches budgets, optionally narrowed to one month (YYYY-MM).
func (s *BudgetsService) List(ctx context.Context, month string) ([]Budget, error) {
	params := url.Values{}
	if month != "" {
		params.Set("month", month)
	}

	var budgets []Budget
	if err := s.api.Get(ctx, "/budgets", params, &budgets); err != nil {
		return nil, errors.Wrap(err, "[BudgetsService.List] GET /budgets")
	}
	return budgets, nil
}

// Create adds a budget.
func (s *BudgetsService) Create(ctx context.Context, req BudgetCreateRequest) (*Budget, error) {
	var budget Budget
	if err := s.api.Post(ctx, "/budgets", req, &budget); err != nil {
		return nil, errors.Wrap(err, "[BudgetsService.Create] POST /budgets")
	}
	return &budget, nil
}

// Update adjusts a budget's amount.
func (s *BudgetsService) Update(ctx context.Context, id string, req BudgetUpdateRequest) (*Budget, error) {
	var budget Budget
	if err := s.api.Patch(ctx, "/budgets/"+id, req, &budget); err != nil {
		return nil, errors.Wrapf(err, "[BudgetsService.Update] PATCH /budgets/%s", id)
	}
	return &budget, nil
}
