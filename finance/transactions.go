package finance

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lMazer/pocket-finance-dashboard/api"
)

// listAllConcurrency caps the page fan-out in ListAll.
const listAllConcurrency = 4

// TransactionsService issues transaction CRUD calls.
type TransactionsService struct {
	api *api.Client
}

// NewTransactionsService creates the service on top of the shared API client.
func NewTransactionsService(apiClient *api.Client) *TransactionsService {
	return &TransactionsService{api: apiClient}
}

// List fetches one page of transactions matching the query.
func (s *TransactionsService) List(ctx context.Context, query TransactionQuery) (*PageResponse[Transaction], error) {
	params := url.Values{}
	if query.Month != "" {
		params.Set("month", query.Month)
	}
	if query.Category != "" {
		params.Set("category", query.Category)
	}
	if query.Type != "" {
		params.Set("type", string(query.Type))
	}
	if query.Search != "" {
		params.Set("q", query.Search)
	}
	if query.Page != nil {
		params.Set("page", strconv.Itoa(*query.Page))
	}

	var page PageResponse[Transaction]
	if err := s.api.Get(ctx, "/transactions", params, &page); err != nil {
		return nil, errors.Wrap(err, "[TransactionsService.List] GET /transactions")
	}
	return &page, nil
}

// ListAll fetches every page matching the query. The first page is fetched
// alone to learn the page count, the rest concurrently.
func (s *TransactionsService) ListAll(ctx context.Context, query TransactionQuery) ([]Transaction, error) {
	first := 0
	query.Page = &first

	firstPage, err := s.List(ctx, query)
	if err != nil {
		return nil, err
	}
	if firstPage.TotalPages <= 1 {
		return firstPage.Items, nil
	}

	pages := make([][]Transaction, firstPage.TotalPages)
	pages[0] = firstPage.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listAllConcurrency)
	for p := 1; p < firstPage.TotalPages; p++ {
		g.Go(func() error {
			q := query
			q.Page = &p
			page, err := s.List(gctx, q)
			if err != nil {
				return err
			}
			pages[p] = page.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Transaction
	for _, items := range pages {
		all = append(all, items...)
	}
	return all, nil
}

// Create adds a transaction.
func (s *TransactionsService) Create(ctx context.Context, req TransactionCreateRequest) (*Transaction, error) {
	var tx Transaction
	if err := s.api.Post(ctx, "/transactions", req, &tx); err != nil {
		return nil, errors.Wrap(err, "[TransactionsService.Create] POST /transactions")
	}
	return &tx, nil
}

// Update patches a transaction; nil fields in req are left untouched.
func (s *TransactionsService) Update(ctx context.Context, id string, req TransactionUpdateRequest) (*Transaction, error) {
	var tx Transaction
	if err := s.api.Patch(ctx, "/transactions/"+id, req, &tx); err != nil {
		return nil, errors.Wrapf(err, "[TransactionsService.Update] PATCH /transactions/%s", id)
	}
	return &tx, nil
}

// Delete removes a transaction.
func (s *TransactionsService) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, "/transactions/"+id); err != nil {
		return errors.Wrapf(err, "[TransactionsService.Delete] DELETE /transactions/%s", id)
	}
	return nil
}
