package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"shiftgate/internal/devicechange/handler/mocks"
	"shiftgate/internal/devicechange/models"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.DiscardHandler))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) pendingRequest() *models.ChangeRequest {
	request, err := models.NewChangeRequest(
		id.NewChangeRequestID(), id.NewIdentityID(), "device-a",
		models.DeviceMeta{Label: "laptop"},
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(err)
	return request
}

func (s *HandlerSuite) TestRequestChange() {
	s.Run("created", func() {
		expected := s.pendingRequest()
		s.service.EXPECT().RequestChange(gomock.Any(), "device-a", "laptop").Return(expected, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/devices/request-change",
			map[string]string{"device_id": "device-a", "label": "laptop"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[models.ChangeRequest](s.T(), rr)
		s.Equal(expected.ID, got.ID)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("duplicate pending conflicts", func() {
		s.service.EXPECT().RequestChange(gomock.Any(), "device-b", "").
			Return(nil, dErrors.New(dErrors.CodeConflict, "a pending change request already exists, wait for review or cancel it"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/devices/request-change",
			map[string]string{"device_id": "device-b"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("invalid body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/devices/request-change", "{not json")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestListMine() {
	s.Run("returns requests", func() {
		expected := s.pendingRequest()
		s.service.EXPECT().ListMine(gomock.Any()).Return([]*models.ChangeRequest{expected}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/devices/my-requests"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[[]*models.ChangeRequest](s.T(), rr)
		s.Require().Len(*got, 1)
		s.Equal(expected.ID, (*got)[0].ID)
	})

	s.Run("empty list is an array", func() {
		s.service.EXPECT().ListMine(gomock.Any()).Return(nil, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/devices/my-requests"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`[]`, rr.Body.String())
	})
}

func (s *HandlerSuite) TestListForIdentity() {
	s.Run("returns the identity's requests", func() {
		expected := s.pendingRequest()
		s.service.EXPECT().ListFor(gomock.Any(), expected.IdentityID).Return([]*models.ChangeRequest{expected}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/employees/"+expected.IdentityID.String()+"/requests")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[[]*models.ChangeRequest](s.T(), rr)
		s.Require().Len(*got, 1)
		s.Equal(expected.ID, (*got)[0].ID)
	})

	s.Run("malformed identity id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/employees/not-a-uuid/requests")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestApprove() {
	s.Run("approved", func() {
		expected := s.pendingRequest()
		expected.ApplyApproval(id.NewIdentityID(), time.Now())
		s.service.EXPECT().Approve(gomock.Any(), expected.ID).Return(expected, nil)

		req := testutil.NewRequest(s.T(), http.MethodPost, "/devices/requests/"+expected.ID.String()+"/approve")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[models.ChangeRequest](s.T(), rr)
		s.Equal(models.StatusApproved, got.Status)
	})

	s.Run("already reviewed conflicts", func() {
		requestID := id.NewChangeRequestID()
		s.service.EXPECT().Approve(gomock.Any(), requestID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "change request was already reviewed"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/devices/requests/"+requestID.String()+"/approve")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("malformed id", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/devices/requests/not-a-uuid/approve")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestReject() {
	expected := s.pendingRequest()
	expected.ApplyRejection(id.NewIdentityID(), "wrong device", time.Now())
	s.service.EXPECT().Reject(gomock.Any(), expected.ID, "wrong device").Return(expected, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/devices/requests/"+expected.ID.String()+"/reject",
		map[string]string{"note": "wrong device"})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[models.ChangeRequest](s.T(), rr)
	s.Equal(models.StatusRejected, got.Status)
	s.Equal("wrong device", got.AdminNote)
}

func (s *HandlerSuite) TestDelete() {
	s.Run("deleted", func() {
		requestID := id.NewChangeRequestID()
		s.service.EXPECT().Delete(gomock.Any(), requestID).Return(nil)

		req := testutil.NewRequest(s.T(), http.MethodDelete, "/devices/requests/"+requestID.String())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})

	s.Run("forbidden for non owner", func() {
		requestID := id.NewChangeRequestID()
		s.service.EXPECT().Delete(gomock.Any(), requestID).
			Return(dErrors.New(dErrors.CodeForbidden, "only the owner or an admin may delete a change request"))

		req := testutil.NewRequest(s.T(), http.MethodDelete, "/devices/requests/"+requestID.String())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}
