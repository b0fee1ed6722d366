package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shiftgate/internal/allowlist"
	"shiftgate/internal/attendance/models"
	"shiftgate/internal/attendance/store"
	"shiftgate/internal/audit"
	dirmodels "shiftgate/internal/directory/models"
	dirstore "shiftgate/internal/directory/store"
	"shiftgate/internal/gate"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/requestcontext"
)

type AttendanceServiceSuite struct {
	suite.Suite
	service    *AttendanceService
	punches    *store.MemoryStore
	identities *dirstore.MemoryStore
	now        time.Time
}

func TestAttendanceServiceSuite(t *testing.T) {
	suite.Run(t, new(AttendanceServiceSuite))
}

func (s *AttendanceServiceSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.punches = store.NewMemoryStore()
	s.identities = dirstore.NewMemoryStore()
	resolver := allowlist.NewResolver(allowlist.NewMemoryCompanyStore([]string{"10.0.0.0/24"}), nil, logger)
	events := make(chan audit.Event, 64)
	g := gate.New(s.identities, resolver, audit.NewPublisher(events, logger), nil, logger)
	s.service = NewAttendanceService(s.punches, g, logger)
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *AttendanceServiceSuite) createBoundEmployee(deviceID string) *dirmodels.Identity {
	identity, err := dirmodels.NewIdentity(id.NewIdentityID(), id.NewIdentityID().String()+"@example.com", "Test User", dirmodels.RoleEmployee, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Create(context.Background(), identity, "hash"))
	binding, err := dirmodels.NewDeviceBinding(deviceID, "laptop", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Rebind(context.Background(), identity.ID, binding))
	return identity
}

func (s *AttendanceServiceSuite) punchCtx(identity *dirmodels.Identity, deviceID, clientIP string, at time.Time) context.Context {
	ctx := requestcontext.WithIdentity(context.Background(), identity.ID, string(identity.Role))
	ctx = requestcontext.WithDeviceID(ctx, deviceID)
	ctx = requestcontext.WithClientMetadata(ctx, clientIP, "test-agent")
	return requestcontext.WithTime(ctx, at)
}

func (s *AttendanceServiceSuite) TestPunch() {
	employee := s.createBoundEmployee("device-a")

	s.Run("allowed punch is recorded", func() {
		result, err := s.service.Punch(s.punchCtx(employee, "device-a", "10.0.0.5", s.now), models.KindIn)
		s.Require().NoError(err)
		s.True(result.Decision.Allowed)
		s.Require().NotNil(result.Punch)
		s.Equal(models.KindIn, result.Punch.Kind)
		s.Equal("device-a", result.Punch.DeviceID)
		s.Equal("10.0.0.5", result.Punch.ClientIP)
	})

	s.Run("denied punch is not recorded", func() {
		result, err := s.service.Punch(s.punchCtx(employee, "device-b", "10.0.0.5", s.now), models.KindIn)
		s.Require().NoError(err)
		s.False(result.Decision.Allowed)
		s.Equal(gate.DenyDeviceMismatch, result.Decision.Reason)
		s.Nil(result.Punch)

		history, err := s.service.History(s.punchCtx(employee, "device-a", "10.0.0.5", s.now), time.Time{}, time.Time{}, 0)
		s.Require().NoError(err)
		s.Len(history, 1, "only the allowed punch was appended")
	})

	s.Run("invalid kind rejected", func() {
		_, err := s.service.Punch(s.punchCtx(employee, "device-a", "10.0.0.5", s.now), models.Kind("lunch"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unauthenticated rejected", func() {
		_, err := s.service.Punch(context.Background(), models.KindIn)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *AttendanceServiceSuite) TestHistory() {
	employee := s.createBoundEmployee("device-a")
	for i := range 3 {
		at := s.now.Add(time.Duration(i) * time.Hour)
		_, err := s.service.Punch(s.punchCtx(employee, "device-a", "10.0.0.5", at), models.KindIn)
		s.Require().NoError(err)
	}

	s.Run("newest first", func() {
		history, err := s.service.History(s.punchCtx(employee, "device-a", "10.0.0.5", s.now.Add(4*time.Hour)), time.Time{}, time.Time{}, 0)
		s.Require().NoError(err)
		s.Require().Len(history, 3)
		s.True(history[0].At.After(history[1].At))
		s.True(history[1].At.After(history[2].At))
	})

	s.Run("window filters", func() {
		history, err := s.service.History(
			s.punchCtx(employee, "device-a", "10.0.0.5", s.now.Add(4*time.Hour)),
			s.now.Add(30*time.Minute), s.now.Add(90*time.Minute), 0,
		)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(s.now.Add(time.Hour), history[0].At)
	})

	s.Run("limit caps results", func() {
		history, err := s.service.History(s.punchCtx(employee, "device-a", "10.0.0.5", s.now.Add(4*time.Hour)), time.Time{}, time.Time{}, 2)
		s.Require().NoError(err)
		s.Len(history, 2)
	})

	s.Run("inverted window rejected", func() {
		_, err := s.service.History(
			s.punchCtx(employee, "device-a", "10.0.0.5", s.now),
			s.now, s.now.Add(-time.Hour), 0,
		)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
