package sales

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (m *memoryIdempotency) Guard(_ context.Context, module string, actorID uuid.UUID, key string) (func(), error) {
	if strings.TrimSpace(key) == "" {
		return func() {}, nil
	}
	scoped := shared.ScopedKey(module, actorID, key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[scoped]; ok {
		return func() {}, shared.ErrIdempotencyConflict
	}
	m.keys[scoped] = struct{}{}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.keys, scoped)
	}, nil
}

// SaleLedgerSuite drives the ledger through a full shift.
type SaleLedgerSuite struct {
	suite.Suite
	f    *fixture
	idem *memoryIdempotency
	ctx  context.Context
}

func (s *SaleLedgerSuite) SetupTest() {
	s.f = newFixture()
	s.idem = &memoryIdempotency{keys: map[string]struct{}{}}
	s.f.svc.idem = s.idem
	s.ctx = context.Background()
}

func (s *SaleLedgerSuite) total() decimal.Decimal {
	return s.f.repo.shifts[s.f.shift.ID].NonBreadSalesTotal
}

func (s *SaleLedgerSuite) ring(actor shared.Actor, key string, items ...ItemInput) (Sale, error) {
	return s.f.svc.Record(s.ctx, actor, s.f.shift.ID, RecordInput{Items: items}, key)
}

func (s *SaleLedgerSuite) TestShiftSalesWorkflow() {
	first, err := s.ring(owner, "", ItemInput{ProductID: s.f.empanada.ID, Quantity: 2})
	s.Require().NoError(err)
	_, err = s.ring(helper, "", ItemInput{ProductID: s.f.bebida.ID, Quantity: 3})
	s.Require().NoError(err)
	_, err = s.ring(owner, "", ItemInput{ProductID: s.f.empanada.ID, Quantity: 1}, ItemInput{ProductID: s.f.bebida.ID, Quantity: 1})
	s.Require().NoError(err)
	s.True(s.total().Equal(decimal.NewFromInt(3000 + 3000 + 2500)))

	list, err := s.f.svc.ListByShift(s.ctx, owner, s.f.shift.ID)
	s.Require().NoError(err)
	s.Len(list, 3)

	s.Require().NoError(s.f.svc.Delete(s.ctx, admin, first.ID))
	s.True(s.total().Equal(decimal.NewFromInt(5500)))
	list, err = s.f.svc.ListByShift(s.ctx, admin, s.f.shift.ID)
	s.Require().NoError(err)
	s.Len(list, 2)

	shift := s.f.repo.shifts[s.f.shift.ID]
	shift.Status = shifts.StatusClosed
	s.f.repo.shifts[s.f.shift.ID] = shift

	_, err = s.ring(owner, "", ItemInput{ProductID: s.f.bebida.ID, Quantity: 1})
	s.ErrorIs(err, shifts.ErrShiftNotFound)
	s.True(s.total().Equal(decimal.NewFromInt(5500)))
	s.Equal(3, s.f.events.recorded)
	s.Equal(1, s.f.events.deleted)
}

func (s *SaleLedgerSuite) TestReplayedKeyIsRejected() {
	item := ItemInput{ProductID: s.f.bebida.ID, Quantity: 1}
	_, err := s.ring(owner, "ticket-1", item)
	s.Require().NoError(err)

	_, err = s.ring(owner, "ticket-1", item)
	s.ErrorIs(err, shared.ErrIdempotencyConflict)
	s.Len(s.f.repo.sales, 1)
	s.True(s.total().Equal(decimal.NewFromInt(1000)))

	_, err = s.ring(helper, "ticket-1", item)
	s.NoError(err, "keys are scoped per actor")
	s.Len(s.f.repo.sales, 2)
}

func (s *SaleLedgerSuite) TestFailedSaleReleasesKey() {
	_, err := s.ring(owner, "ticket-9", ItemInput{ProductID: uuid.New(), Quantity: 1})
	s.ErrorIs(err, shared.ErrNotFound)

	_, err = s.ring(owner, "ticket-9", ItemInput{ProductID: s.f.empanada.ID, Quantity: 1})
	s.NoError(err)
	s.True(s.total().Equal(decimal.NewFromInt(1500)))
}

func (s *SaleLedgerSuite) TestLedgerVisibility() {
	_, err := s.ring(helper, "", ItemInput{ProductID: s.f.bebida.ID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.f.svc.ListByShift(s.ctx, helper, s.f.shift.ID)
	s.ErrorIs(err, shifts.ErrShiftNotFound)

	_, err = s.f.svc.ListByShift(s.ctx, owner, uuid.New())
	s.ErrorIs(err, shared.ErrNotFound)
}

func TestSaleLedgerSuite(t *testing.T) {
	suite.Run(t, new(SaleLedgerSuite))
}
