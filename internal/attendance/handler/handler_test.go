package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"shiftgate/internal/allowlist"
	"shiftgate/internal/attendance/models"
	"shiftgate/internal/attendance/service"
	"shiftgate/internal/attendance/store"
	"shiftgate/internal/audit"
	dirmodels "shiftgate/internal/directory/models"
	dirstore "shiftgate/internal/directory/store"
	"shiftgate/internal/gate"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/testutil"
)

// The attendance handler is tested against the real service and gate with
// in-memory stores, since the interesting behavior is the gate outcome
// reaching the wire.
type HandlerSuite struct {
	suite.Suite
	router     chi.Router
	identities *dirstore.MemoryStore
	employee   *dirmodels.Identity
	now        time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.identities = dirstore.NewMemoryStore()
	resolver := allowlist.NewResolver(allowlist.NewMemoryCompanyStore([]string{"10.0.0.0/24"}), nil, logger)
	events := make(chan audit.Event, 64)
	g := gate.New(s.identities, resolver, audit.NewPublisher(events, logger), nil, logger)
	svc := service.NewAttendanceService(store.NewMemoryStore(), g, logger)

	s.router = chi.NewRouter()
	New(svc, logger).Register(s.router)

	identity, err := dirmodels.NewIdentity(id.NewIdentityID(), "alice@example.com", "Alice", dirmodels.RoleEmployee, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Create(context.Background(), identity, "hash"))
	binding, err := dirmodels.NewDeviceBinding("device-a", "laptop", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Rebind(context.Background(), identity.ID, binding))
	s.employee = identity
}

func (s *HandlerSuite) punchRequest(deviceID, clientIP string) *http.Request {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/attendance/punch", map[string]string{"kind": "in"})
	req = testutil.WithIdentity(req, s.employee.ID.String(), string(dirmodels.RoleEmployee))
	req = testutil.WithDevice(req, deviceID)
	req = testutil.WithClientMetadata(req, clientIP, "test-agent")
	return testutil.WithTime(req, s.now)
}

func (s *HandlerSuite) TestPunch() {
	s.Run("allowed punch returns 201 with record", func() {
		rr := testutil.DoRequest(s.router, s.punchRequest("device-a", "10.0.0.5"))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "allowed", true)
	})

	s.Run("device mismatch returns 403 with reason", func() {
		rr := testutil.DoRequest(s.router, s.punchRequest("device-b", "10.0.0.5"))

		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
		testutil.AssertJSONContains(s.T(), rr, "reason", string(gate.DenyDeviceMismatch))
	})

	s.Run("off-network punch returns 403 with reason", func() {
		rr := testutil.DoRequest(s.router, s.punchRequest("device-a", "192.168.1.1"))

		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
		testutil.AssertJSONContains(s.T(), rr, "reason", string(gate.DenyNetworkNotAllowed))
	})

	s.Run("unauthenticated returns 401", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/attendance/punch", map[string]string{"kind": "in"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *HandlerSuite) TestHistory() {
	rr := testutil.DoRequest(s.router, s.punchRequest("device-a", "10.0.0.5"))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/attendance/history")
	req = testutil.WithIdentity(req, s.employee.ID.String(), string(dirmodels.RoleEmployee))
	req = testutil.WithTime(req, s.now.Add(time.Hour))
	rr = testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[[]*models.Punch](s.T(), rr)
	s.Require().Len(*got, 1)
	s.Equal(models.KindIn, (*got)[0].Kind)

	s.Run("bad from parameter", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/attendance/history?from=yesterday")
		req = testutil.WithIdentity(req, s.employee.ID.String(), string(dirmodels.RoleEmployee))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}
