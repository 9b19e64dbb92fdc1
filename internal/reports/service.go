package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

// RepositoryPort is the read model the reports are computed from.
type RepositoryPort interface {
	GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error)
	LoadLedger(ctx context.Context, shiftID uuid.UUID) (shifts.Ledger, error)
	ListSaleLines(ctx context.Context, shiftID uuid.UUID) ([]SaleLine, error)
	ListClosedSaleLines(ctx context.Context, from, to time.Time) ([]SaleLine, error)
	ClosedShiftsBetween(ctx context.Context, from, to time.Time) ([]shifts.Shift, error)
	ListClosedShifts(ctx context.Context, filter HistoryFilter) ([]shifts.Shift, error)
}

// Service computes shift, period and product reports.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	calendar shared.Calendar
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the repository with an optional cache.
func NewService(repo RepositoryPort, cache *Cache, calendar shared.Calendar, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, calendar: calendar, logger: logger, now: time.Now}
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// ParseDate resolves a YYYY-MM-DD reference date, defaulting to today.
func (s *Service) ParseDate(raw string) (time.Time, error) {
	return s.calendar.ParseDate(raw, s.now())
}

// ShiftReport returns a shift with its figures and products sold. Closed
// shifts report their adjusted tray count; open shifts report live figures.
func (s *Service) ShiftReport(ctx context.Context, actor shared.Actor, id uuid.UUID) (ShiftReport, error) {
	shift, err := s.visibleShift(ctx, actor, id)
	if err != nil {
		return ShiftReport{}, err
	}
	ledger, err := s.repo.LoadLedger(ctx, id)
	if err != nil {
		return ShiftReport{}, err
	}
	lines, err := s.repo.ListSaleLines(ctx, id)
	if err != nil {
		return ShiftReport{}, err
	}
	return ShiftReport{
		Shift:      shift,
		Aggregates: shifts.AggregatesFor(shift, ledger),
		Products:   GroupProducts(lines),
	}, nil
}

// ProductsSold returns the per-product breakdown of one shift.
func (s *Service) ProductsSold(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]ProductSold, error) {
	if _, err := s.visibleShift(ctx, actor, id); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListSaleLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return GroupProducts(lines), nil
}

// ClosedShifts lists closed shifts newest first. Sellers only see their own.
func (s *Service) ClosedShifts(ctx context.Context, actor shared.Actor, filter HistoryFilter) ([]shifts.Shift, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, ErrInvalidRange
	}
	if !actor.IsAdmin() {
		id := actor.ID
		filter.OpenedBy = &id
	}
	filter.Page = shared.NewPage(filter.Page.Limit, filter.Page.Offset)
	return s.repo.ListClosedShifts(ctx, filter)
}

// PeriodReport summarises the week or month containing ref.
func (s *Service) PeriodReport(ctx context.Context, kind shared.PeriodKind, ref time.Time) (PeriodReport, error) {
	start, end := s.calendar.Bounds(kind, ref)
	key, err := s.cache.BuildKey(ctx, "period", string(kind), start.Format(time.DateOnly))
	if err != nil {
		return PeriodReport{}, err
	}
	var report PeriodReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		return s.computePeriod(ctx, kind, start, end)
	})
	return report, err
}

// WeeklyProducts lays out per-product sales for the week containing ref.
func (s *Service) WeeklyProducts(ctx context.Context, ref time.Time) (WeeklyProducts, error) {
	start, end := s.calendar.Bounds(shared.PeriodWeek, ref)
	key, err := s.cache.BuildKey(ctx, "weekly-products", start.Format(time.DateOnly))
	if err != nil {
		return WeeklyProducts{}, err
	}
	var summary WeeklyProducts
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.computeWeekly(ctx, start, end)
	})
	return summary, err
}

// Warm recomputes the current week and month into the cache.
func (s *Service) Warm(ctx context.Context) error {
	today := s.calendar.BusinessDate(s.now())
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range []shared.PeriodKind{shared.PeriodWeek, shared.PeriodMonth} {
		kind := kind
		g.Go(func() error {
			start, end := s.calendar.Bounds(kind, today)
			report, err := s.computePeriod(ctx, kind, start, end)
			if err != nil {
				return err
			}
			key, err := s.cache.BuildKey(ctx, "period", string(kind), start.Format(time.DateOnly))
			if err != nil {
				return err
			}
			return s.cache.Store(ctx, key, report)
		})
	}
	g.Go(func() error {
		start, end := s.calendar.Bounds(shared.PeriodWeek, today)
		summary, err := s.computeWeekly(ctx, start, end)
		if err != nil {
			return err
		}
		key, err := s.cache.BuildKey(ctx, "weekly-products", start.Format(time.DateOnly))
		if err != nil {
			return err
		}
		return s.cache.Store(ctx, key, summary)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("reports warmed", slog.String("date", today.Format(time.DateOnly)))
	return nil
}

func (s *Service) computePeriod(ctx context.Context, kind shared.PeriodKind, start, end time.Time) (PeriodReport, error) {
	closed, err := s.repo.ClosedShiftsBetween(ctx, start, end)
	if err != nil {
		return PeriodReport{}, err
	}
	return BuildPeriodReport(kind, start, end, closed), nil
}

func (s *Service) computeWeekly(ctx context.Context, start, end time.Time) (WeeklyProducts, error) {
	lines, err := s.repo.ListClosedSaleLines(ctx, start, end)
	if err != nil {
		return WeeklyProducts{}, err
	}
	return BuildWeeklyProducts(start, lines), nil
}

func (s *Service) visibleShift(ctx context.Context, actor shared.Actor, id uuid.UUID) (shifts.Shift, error) {
	shift, err := s.repo.GetShift(ctx, id)
	if err != nil {
		return shifts.Shift{}, err
	}
	if !shift.OwnedBy(actor.ID) && !actor.IsAdmin() {
		return shifts.Shift{}, shifts.ErrShiftNotFound
	}
	return shift, nil
}
