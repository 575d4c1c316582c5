package finance

import (
	"context"

	"github.com/pkg/errors"

	"github.com/lMazer/pocket-finance-dashboard/api"
)

// CategoriesService issues category CRUD calls.
type CategoriesService struct {
	api *api.Client
}

// NewCategoriesService creates the service on top of the shared API client.
func NewCategoriesService(apiClient *api.Client) *CategoriesService {
	return &CategoriesService{api: apiClient}
}

// List fetches all categories.
func (s *CategoriesService) List(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := s.api.Get(ctx, "/categories", nil, &categories); err != nil {
		return nil, errors.Wrap(err, "[CategoriesService.List] GET /categories")
	}
	return categories, nil
}

// Create adds a category.
func (s *CategoriesService) Create(ctx context.Context, req CategoryRequest) (*Category, error) {
	var category Category
	if err := s.api.Post(ctx, "/categories", req, &category); err != nil {
		return nil, errors.Wrap(err, "[CategoriesService.Create] POST /categories")
	}
	return &category, nil
}

// Update replaces a category's name and color.
func (s *CategoriesService) Update(ctx context.Context, id string, req CategoryRequest) (*Category, error) {
	var category Category
	if err := s.api.Patch(ctx, "/categories/"+id, req, &category); err != nil {
		return nil, errors.Wrapf(err, "[CategoriesService.Update] PATCH /categories/%s", id)
	}
	return &category, nil
}

// Delete removes a category.
func (s *CategoriesService) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, "/categories/"+id); err != nil {
		return errors.Wrapf(err, "[CategoriesService.Delete] DELETE /categories/%s", id)
	}
	return nil
}
