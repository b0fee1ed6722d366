//go:build integration

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shiftgate/internal/devicechange/models"
	dirmodels "shiftgate/internal/directory/models"
	dirstore "shiftgate/internal/directory/store"
	"shiftgate/internal/platform/postgres"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
	"shiftgate/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	pg         *containers.PostgresContainer
	ledger     *PostgresLedger
	identities *dirstore.PostgresStore
	ctx        context.Context
	now        time.Time
}

func TestPostgresLedgerSuite(t *testing.T) {
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.ctx = context.Background()
	s.Require().NoError(postgres.EnsureSchema(s.ctx, s.pg.DB))
	s.ledger = NewPostgresLedger(s.pg.DB)
	s.identities = dirstore.NewPostgres(s.pg.DB)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresLedgerSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE device_change_requests, identities CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) createIdentity() id.IdentityID {
	identity, err := dirmodels.NewIdentity(id.NewIdentityID(), id.NewIdentityID().String()+"@example.com", "Test User", dirmodels.RoleEmployee, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Create(s.ctx, identity, "hash"))
	return identity.ID
}

func (s *PostgresLedgerSuite) newRequest(identityID id.IdentityID, deviceID string) *models.ChangeRequest {
	request, err := models.NewChangeRequest(id.NewChangeRequestID(), identityID, deviceID, models.DeviceMeta{Label: "laptop"}, s.now)
	s.Require().NoError(err)
	return request
}

func (s *PostgresLedgerSuite) TestPendingUniqueness() {
	identityID := s.createIdentity()

	s.Require().NoError(s.ledger.Create(s.ctx, s.newRequest(identityID, "device-a")))

	err := s.ledger.Create(s.ctx, s.newRequest(identityID, "device-b"))
	s.Require().ErrorIs(err, ErrDuplicatePending)

	otherID := s.createIdentity()
	s.Require().NoError(s.ledger.Create(s.ctx, s.newRequest(otherID, "device-c")))
}

func (s *PostgresLedgerSuite) TestConcurrentCreate() {
	identityID := s.createIdentity()
	const n = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0

	for range n {
		wg.Go(func() {
			err := s.ledger.Create(s.ctx, s.newRequest(identityID, "device-race"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicatePending):
				duplicates++
			}
		})
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(n-1, duplicates)
}

func (s *PostgresLedgerSuite) TestTransition() {
	identityID := s.createIdentity()
	reviewer := s.createIdentity()
	request := s.newRequest(identityID, "device-a")
	s.Require().NoError(s.ledger.Create(s.ctx, request))

	updated, err := s.ledger.Transition(s.ctx, request.ID, models.StatusApproved, reviewer, "", s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, updated.Status)
	s.Require().NotNil(updated.ReviewedBy)
	s.Equal(reviewer, *updated.ReviewedBy)

	_, err = s.ledger.Transition(s.ctx, request.ID, models.StatusRejected, reviewer, "", s.now)
	s.Require().ErrorIs(err, ErrAlreadyReviewed)

	_, err = s.ledger.Transition(s.ctx, id.NewChangeRequestID(), models.StatusApproved, reviewer, "", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresLedgerSuite) TestConcurrentTransition() {
	identityID := s.createIdentity()
	request := s.newRequest(identityID, "device-race")
	s.Require().NoError(s.ledger.Create(s.ctx, request))

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0

	for range n {
		reviewer := s.createIdentity()
		wg.Go(func() {
			_, err := s.ledger.Transition(s.ctx, request.ID, models.StatusApproved, reviewer, "", s.now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyReviewed):
				losses++
			}
		})
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(n-1, losses)
}

func (s *PostgresLedgerSuite) TestRejectionFreesPendingSlot() {
	identityID := s.createIdentity()
	reviewer := s.createIdentity()
	request := s.newRequest(identityID, "device-a")
	s.Require().NoError(s.ledger.Create(s.ctx, request))

	_, err := s.ledger.Transition(s.ctx, request.ID, models.StatusRejected, reviewer, "wrong device", s.now)
	s.Require().NoError(err)

	s.Require().NoError(s.ledger.Create(s.ctx, s.newRequest(identityID, "device-b")))
}

func (s *PostgresLedgerSuite) TestListOrdering() {
	identityID := s.createIdentity()
	reviewer := s.createIdentity()

	first := s.newRequest(identityID, "device-1")
	first.RequestedAt = s.now.Add(-time.Hour)
	s.Require().NoError(s.ledger.Create(s.ctx, first))
	_, err := s.ledger.Transition(s.ctx, first.ID, models.StatusRejected, reviewer, "", s.now)
	s.Require().NoError(err)

	second := s.newRequest(identityID, "device-2")
	s.Require().NoError(s.ledger.Create(s.ctx, second))

	list, err := s.ledger.ListByIdentity(s.ctx, identityID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)
}

func (s *PostgresLedgerSuite) TestDelete() {
	identityID := s.createIdentity()
	request := s.newRequest(identityID, "device-a")
	s.Require().NoError(s.ledger.Create(s.ctx, request))

	s.Require().NoError(s.ledger.Delete(s.ctx, request.ID))
	s.Require().ErrorIs(s.ledger.Delete(s.ctx, request.ID), sentinel.ErrNotFound)

	_, err := s.ledger.FindByID(s.ctx, request.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
