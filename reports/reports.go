// Package reports covers the CSV import/export transport and the backend
// health probe.
package reports

import (
	"context"
	"io"
	"mime"
	"net/url"

	"github.com/pkg/errors"

	"github.com/lMazer/pocket-finance-dashboard/api"
)

// ImportResult summarizes a CSV import: how many rows became transactions and
// how many were skipped as malformed.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ExportQuery narrows a CSV export. Zero values mean "no filter".
type ExportQuery struct {
	Month    string
	Category string
}

// HealthStatus is the actuator health probe response.
type HealthStatus struct {
	Status string `json:"status"`
}

// Service issues report and health calls.
type Service struct {
	api *api.Client
}

// NewService creates the service on top of the shared API client.
func NewService(apiClient *api.Client) *Service {
	return &Service{api: apiClient}
}

// ImportCSV uploads a CSV of transactions.
func (s *Service) ImportCSV(ctx context.Context, fileName string, file io.Reader) (*ImportResult, error) {
	var result ImportResult
	if err := s.api.Upload(ctx, "/import/csv", "file", fileName, file, &result); err != nil {
		return nil, errors.Wrap(err, "[Service.ImportCSV] POST /import/csv")
	}
	return &result, nil
}

// ExportCSV streams the transactions CSV into w and returns the file name the
// backend suggested ("" when it sent none).
func (s *Service) ExportCSV(ctx context.Context, query ExportQuery, w io.Writer) (string, error) {
	params := url.Values{}
	if query.Month != "" {
		params.Set("month", query.Month)
	}
	if query.Category != "" {
		params.Set("category", query.Category)
	}

	disposition, err := s.api.Download(ctx, "/export/csv", params, w)
	if err != nil {
		return "", errors.Wrap(err, "[Service.ExportCSV] GET /export/csv")
	}
	return fileNameFromDisposition(disposition), nil
}

// Health probes the backend's actuator endpoint.
func (s *Service) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := s.api.Get(ctx, "/actuator/health", nil, &status); err != nil {
		return nil, errors.Wrap(err, "[Service.Health] GET /actuator/health")
	}
	return &status, nil
}

func fileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
