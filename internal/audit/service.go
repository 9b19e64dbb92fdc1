package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxRange        = 92 * 24 * time.Hour
)

// ErrInvalidRange flags a reversed or oversized date range.
var ErrInvalidRange = fmt.Errorf("audit: %w: invalid date range", shared.ErrValidation)

// RepositoryPort abstracts audit_logs reads.
type RepositoryPort interface {
	Window(ctx context.Context, p WindowParams) ([]TimelineRow, error)
}

// Service serves the audit timeline.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the timeline, fetching one extra row to detect a next page.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	params := windowParams(filters)
	params.Offset = (page - 1) * pageSize
	params.Limit = pageSize + 1
	rows, err := s.repo.Window(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return nil, err
	}
	return s.repo.Window(ctx, windowParams(filters))
}

func checkRange(f TimelineFilters) error {
	if f.From.IsZero() || f.To.IsZero() {
		return nil
	}
	if f.From.After(f.To) || f.To.Sub(f.From) > maxRange {
		return ErrInvalidRange
	}
	return nil
}

func windowParams(f TimelineFilters) WindowParams {
	return WindowParams{
		From:    f.From,
		To:      f.To,
		ActorID: f.ActorID,
		Entity:  strings.TrimSpace(f.Entity),
		Action:  strings.TrimSpace(f.Action),
	}
}
