package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pollster/internal/polls/handler/mocks"
	"pollster/internal/polls/models"
	id "pollster/pkg/domain"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/requestcontext"
	tu "pollster/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	service  *mocks.MockService
	router   chi.Router
	identity *requestcontext.Identity
	guarded  []string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.guarded = nil
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	s.router.Route("/api/polls", func(r chi.Router) {
		h.Register(r, Middleware{
			Read:   s.mark("read"),
			Create: s.mark("create"),
			Vote:   s.mark("vote"),
			Mutate: s.mark("mutate"),
		})
	})
	s.identity = &requestcontext.Identity{UserID: tu.TestIDs.UserID1}
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) mark(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.guarded = append(s.guarded, name)
			next.ServeHTTP(w, r)
		})
	}
}

func (s *HandlerSuite) do(method, path, body string, identity *requestcontext.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if identity != nil {
		req = req.WithContext(requestcontext.WithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) errorCode(rr *httptest.ResponseRecorder) string {
	var body httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Code
}

func (s *HandlerSuite) TestCreate() {
	s.service.EXPECT().Create(gomock.Any(), tu.TestIDs.UserID1, &models.CreatePollRequest{Question: "Lunch?", Options: []string{"tacos", "pho"}}).
		Return(&models.Poll{ID: tu.TestIDs.PollID1, Question: "Lunch?"}, nil)

	rr := s.do(http.MethodPost, "/api/polls", `{"question":" Lunch? ","options":["tacos","pho"]}`, s.identity)

	s.Equal(http.StatusCreated, rr.Code)
	s.Equal([]string{"create", "mutate"}, s.guarded)
	var body models.Poll
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal(tu.TestIDs.PollID1, body.ID)
}

func (s *HandlerSuite) TestCreateValidation() {
	rr := s.do(http.MethodPost, "/api/polls", `{"question":"Lunch?","options":["only one"]}`, s.identity)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("VALIDATION", s.errorCode(rr))

	rr = s.do(http.MethodPost, "/api/polls", `{"question":`, s.identity)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestCreateAnonymous() {
	rr := s.do(http.MethodPost, "/api/polls", `{}`, nil)
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("AUTHENTICATION_REQUIRED", s.errorCode(rr))
}

func (s *HandlerSuite) TestList() {
	s.service.EXPECT().List(gomock.Any(), 5).Return([]*models.Poll{{ID: tu.TestIDs.PollID1}}, nil)

	rr := s.do(http.MethodGet, "/api/polls?limit=5", "", nil)

	s.Equal(http.StatusOK, rr.Code)
	s.Equal([]string{"read"}, s.guarded)
	var body models.PollListResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Len(body.Polls, 1)

	rr = s.do(http.MethodGet, "/api/polls?limit=abc", "", nil)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestGetAndResults() {
	s.service.EXPECT().Get(gomock.Any(), tu.TestIDs.PollID1).Return(&models.Poll{ID: tu.TestIDs.PollID1}, nil)
	rr := s.do(http.MethodGet, "/api/polls/"+tu.TestIDs.PollID1.String(), "", nil)
	s.Equal(http.StatusOK, rr.Code)

	s.service.EXPECT().Results(gomock.Any(), tu.TestIDs.PollID2).Return(nil, dErrors.New(dErrors.CodeNotFound, "poll not found"))
	rr = s.do(http.MethodGet, "/api/polls/"+tu.TestIDs.PollID2.String()+"/results", "", nil)
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/api/polls/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestVote() {
	optionID := id.NewOptionID()
	s.service.EXPECT().Vote(gomock.Any(), tu.TestIDs.UserID1, tu.TestIDs.PollID1, optionID).
		Return(&models.Results{PollID: tu.TestIDs.PollID1, TotalVotes: 1}, nil)

	rr := s.do(http.MethodPost, "/api/polls/"+tu.TestIDs.PollID1.String()+"/votes", `{"option_id":"`+optionID.String()+`"}`, s.identity)

	s.Equal(http.StatusCreated, rr.Code)
	s.Equal([]string{"vote", "mutate"}, s.guarded)
	var body models.VoteResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.True(body.Success)
	s.Equal(1, body.Results.TotalVotes)
}

func (s *HandlerSuite) TestRepeatVoteConflict() {
	s.service.EXPECT().Vote(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "you have already voted in this poll"))

	rr := s.do(http.MethodPost, "/api/polls/"+tu.TestIDs.PollID1.String()+"/votes", `{"option_id":"`+id.NewOptionID().String()+`"}`, s.identity)

	s.Equal(http.StatusConflict, rr.Code)
	s.Equal("CONFLICT", s.errorCode(rr))
}

func (s *HandlerSuite) TestDelete() {
	s.service.EXPECT().Delete(gomock.Any(), tu.TestIDs.UserID1, tu.TestIDs.PollID1).Return(nil)
	rr := s.do(http.MethodDelete, "/api/polls/"+tu.TestIDs.PollID1.String(), "", s.identity)
	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal([]string{"mutate"}, s.guarded)

	s.service.EXPECT().Delete(gomock.Any(), tu.TestIDs.UserID1, tu.TestIDs.PollID2).
		Return(dErrors.New(dErrors.CodeForbidden, "only the poll owner can delete it"))
	rr = s.do(http.MethodDelete, "/api/polls/"+tu.TestIDs.PollID2.String(), "", s.identity)
	s.Equal(http.StatusForbidden, rr.Code)
}
