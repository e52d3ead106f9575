package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pollster/internal/csrf/handler/mocks"
	"pollster/internal/csrf/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/requestcontext"
	tu "pollster/pkg/testutil"
)

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
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), true)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) request(authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	if authenticated {
		req = req.WithContext(requestcontext.WithIdentity(req.Context(), &requestcontext.Identity{UserID: tu.TestIDs.UserID1}))
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) TestIssueToken() {
	tok := strings.Repeat("ab", 32)
	rec := models.NewRecord(tu.TestIDs.UserID1.String(), tu.T0, 24*time.Hour)
	s.service.EXPECT().Issue(gomock.Any(), tu.TestIDs.UserID1.String()).Return(tok, rec, nil)

	rr := s.request(true)

	s.Equal(http.StatusOK, rr.Code)
	var body models.TokenResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.True(body.Success)
	s.Equal(tok, body.Token)
	s.NotEmpty(body.Message)

	cookies := rr.Result().Cookies()
	s.Require().Len(cookies, 1)
	c := cookies[0]
	s.Equal("csrf-token", c.Name)
	s.Equal(tok, c.Value)
	s.Equal(86400, c.MaxAge)
	s.True(c.HttpOnly)
	s.True(c.Secure)
	s.Equal(http.SameSiteStrictMode, c.SameSite)
}

func (s *HandlerSuite) TestAnonymous() {
	rr := s.request(false)
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Contains(rr.Body.String(), "AUTHENTICATION_REQUIRED")
}

func (s *HandlerSuite) TestIssueFailure() {
	s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).
		Return("", models.Record{}, dErrors.Wrap(errors.New("redis down"), dErrors.CodeInternal, "store csrf token"))

	rr := s.request(true)

	s.Equal(http.StatusInternalServerError, rr.Code)
	s.Contains(rr.Body.String(), `"code":"INTERNAL"`)
	s.Empty(rr.Result().Cookies())
}
