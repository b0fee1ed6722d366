package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shiftgate/internal/devicechange/models"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
)

type MemoryLedgerSuite struct {
	suite.Suite
	ledger *MemoryLedger
	ctx    context.Context
	now    time.Time
}

func TestMemoryLedgerSuite(t *testing.T) {
	suite.Run(t, new(MemoryLedgerSuite))
}

func (s *MemoryLedgerSuite) SetupTest() {
	s.ledger = NewMemoryLedger()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *MemoryLedgerSuite) newRequest(identityID id.IdentityID, deviceID string, at time.Time) *models.ChangeRequest {
	request, err := models.NewChangeRequest(id.NewChangeRequestID(), identityID, deviceID, models.DeviceMeta{Label: "test device"}, at)
	s.Require().NoError(err)
	return request
}

func (s *MemoryLedgerSuite) TestCreate() {
	identityID := id.NewIdentityID()

	s.Run("first request accepted", func() {
		err := s.ledger.Create(s.ctx, s.newRequest(identityID, "device-a", s.now))
		s.Require().NoError(err)
	})

	s.Run("second pending request for same identity rejected", func() {
		err := s.ledger.Create(s.ctx, s.newRequest(identityID, "device-b", s.now))
		s.Require().ErrorIs(err, ErrDuplicatePending)
	})

	s.Run("other identities unaffected", func() {
		err := s.ledger.Create(s.ctx, s.newRequest(id.NewIdentityID(), "device-c", s.now))
		s.Require().NoError(err)
	})
}

func (s *MemoryLedgerSuite) TestConcurrentCreate() {
	identityID := id.NewIdentityID()
	const n = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0

	for range n {
		wg.Go(func() {
			err := s.ledger.Create(s.ctx, s.newRequest(identityID, "device-race", s.now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicatePending):
				duplicates++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		})
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(n-1, duplicates)

	pending, err := s.ledger.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *MemoryLedgerSuite) TestListOrdering() {
	identityID := id.NewIdentityID()
	reviewer := id.NewIdentityID()

	first := s.newRequest(identityID, "device-1", s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, first))
	_, err := s.ledger.Transition(s.ctx, first.ID, models.StatusRejected, reviewer, "", s.now.Add(time.Minute))
	s.Require().NoError(err)

	second := s.newRequest(identityID, "device-2", s.now.Add(2*time.Minute))
	s.Require().NoError(s.ledger.Create(s.ctx, second))

	otherPending := s.newRequest(id.NewIdentityID(), "device-3", s.now.Add(time.Minute))
	s.Require().NoError(s.ledger.Create(s.ctx, otherPending))

	s.Run("by identity newest first", func() {
		list, err := s.ledger.ListByIdentity(s.ctx, identityID)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(second.ID, list[0].ID)
		s.Equal(first.ID, list[1].ID)
	})

	s.Run("pending oldest first", func() {
		list, err := s.ledger.ListPending(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(otherPending.ID, list[0].ID)
		s.Equal(second.ID, list[1].ID)
	})
}

func (s *MemoryLedgerSuite) TestTransition() {
	reviewer := id.NewIdentityID()

	s.Run("approve pending request", func() {
		request := s.newRequest(id.NewIdentityID(), "device-a", s.now)
		s.Require().NoError(s.ledger.Create(s.ctx, request))

		updated, err := s.ledger.Transition(s.ctx, request.ID, models.StatusApproved, reviewer, "", s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, updated.Status)
		s.Require().NotNil(updated.ReviewedBy)
		s.Equal(reviewer, *updated.ReviewedBy)
	})

	s.Run("second review rejected", func() {
		request := s.newRequest(id.NewIdentityID(), "device-b", s.now)
		s.Require().NoError(s.ledger.Create(s.ctx, request))

		_, err := s.ledger.Transition(s.ctx, request.ID, models.StatusRejected, reviewer, "no", s.now)
		s.Require().NoError(err)

		_, err = s.ledger.Transition(s.ctx, request.ID, models.StatusApproved, reviewer, "", s.now)
		s.Require().ErrorIs(err, ErrAlreadyReviewed)
	})

	s.Run("rejection frees the pending slot", func() {
		identityID := id.NewIdentityID()
		request := s.newRequest(identityID, "device-c", s.now)
		s.Require().NoError(s.ledger.Create(s.ctx, request))

		_, err := s.ledger.Transition(s.ctx, request.ID, models.StatusRejected, reviewer, "wrong device", s.now)
		s.Require().NoError(err)

		err = s.ledger.Create(s.ctx, s.newRequest(identityID, "device-d", s.now))
		s.Require().NoError(err)
	})

	s.Run("unknown request not found", func() {
		_, err := s.ledger.Transition(s.ctx, id.NewChangeRequestID(), models.StatusApproved, reviewer, "", s.now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("pending is not a transition target", func() {
		request := s.newRequest(id.NewIdentityID(), "device-e", s.now)
		s.Require().NoError(s.ledger.Create(s.ctx, request))

		_, err := s.ledger.Transition(s.ctx, request.ID, models.StatusPending, reviewer, "", s.now)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *MemoryLedgerSuite) TestConcurrentTransition() {
	request := s.newRequest(id.NewIdentityID(), "device-race", s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, request))

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0

	for i := range n {
		to := models.StatusApproved
		if i%2 == 1 {
			to = models.StatusRejected
		}
		wg.Go(func() {
			_, err := s.ledger.Transition(s.ctx, request.ID, to, id.NewIdentityID(), "", s.now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyReviewed):
				losses++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		})
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(n-1, losses)
}

func (s *MemoryLedgerSuite) TestDelete() {
	identityID := id.NewIdentityID()
	request := s.newRequest(identityID, "device-del", s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, request))

	s.Run("delete frees the pending slot", func() {
		s.Require().NoError(s.ledger.Delete(s.ctx, request.ID))

		err := s.ledger.Create(s.ctx, s.newRequest(identityID, "device-next", s.now))
		s.Require().NoError(err)
	})

	s.Run("unknown request not found", func() {
		err := s.ledger.Delete(s.ctx, id.NewChangeRequestID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
