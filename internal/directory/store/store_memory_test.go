package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shiftgate/internal/directory/models"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) mustCreate(email string, at time.Time) *models.Identity {
	identity, err := models.NewIdentity(id.NewIdentityID(), email, "Test User", models.RoleEmployee, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, identity, "hash"))
	return identity
}

func (s *MemoryStoreSuite) TestCreate() {
	s.Run("creates and finds identity", func() {
		identity := s.mustCreate("alice@example.com", s.now)

		found, err := s.store.FindByID(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Equal("alice@example.com", found.Email)
		s.Equal(models.RoleEmployee, found.Role)
		s.Nil(found.Binding)
	})

	s.Run("duplicate email conflicts", func() {
		s.mustCreate("bob@example.com", s.now)

		dup, err := models.NewIdentity(id.NewIdentityID(), "Bob@Example.com", "Bob Again", models.RoleEmployee, s.now)
		s.Require().NoError(err)
		err = s.store.Create(s.ctx, dup, "hash")
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing identity not found", func() {
		_, err := s.store.FindByID(s.ctx, id.NewIdentityID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestList() {
	older := s.mustCreate("older@example.com", s.now)
	newer := s.mustCreate("newer@example.com", s.now.Add(time.Hour))

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)
}

func (s *MemoryStoreSuite) TestSetAllowedNetworks() {
	identity := s.mustCreate("nets@example.com", s.now)

	err := s.store.SetAllowedNetworks(s.ctx, identity.ID, []string{"10.0.0.0/8", "192.168.1.50"})
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal([]string{"10.0.0.0/8", "192.168.1.50"}, found.AllowedNetworks)

	s.Run("replaces rather than merges", func() {
		err := s.store.SetAllowedNetworks(s.ctx, identity.ID, []string{"172.16.0.0/12"})
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Equal([]string{"172.16.0.0/12"}, found.AllowedNetworks)
	})

	s.Run("unknown identity not found", func() {
		err := s.store.SetAllowedNetworks(s.ctx, id.NewIdentityID(), nil)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestRebind() {
	identity := s.mustCreate("bind@example.com", s.now)

	s.Run("no binding initially", func() {
		binding, err := s.store.Binding(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Nil(binding)
	})

	s.Run("rebind sets binding", func() {
		binding, err := models.NewDeviceBinding("device-abc", "MacBook Pro", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Rebind(s.ctx, identity.ID, binding))

		got, err := s.store.Binding(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal("device-abc", got.DeviceID)
		s.Equal("MacBook Pro", got.Label)
	})

	s.Run("rebind replaces previous binding", func() {
		binding, err := models.NewDeviceBinding("device-xyz", "iPhone", s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Rebind(s.ctx, identity.ID, binding))

		got, err := s.store.Binding(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal("device-xyz", got.DeviceID)
	})

	s.Run("rebind unknown identity not found", func() {
		binding, err := models.NewDeviceBinding("device-ghost", "", s.now)
		s.Require().NoError(err)
		err = s.store.Rebind(s.ctx, id.NewIdentityID(), binding)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestCallerCannotMutateStoredState() {
	identity := s.mustCreate("alias@example.com", s.now)
	s.Require().NoError(s.store.SetAllowedNetworks(s.ctx, identity.ID, []string{"10.0.0.0/8"}))

	found, err := s.store.FindByID(s.ctx, identity.ID)
	s.Require().NoError(err)
	found.AllowedNetworks[0] = "0.0.0.0/0"

	again, err := s.store.FindByID(s.ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal([]string{"10.0.0.0/8"}, again.AllowedNetworks)
}
