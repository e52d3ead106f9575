package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: every guard and handler reports failures through these codes;
// the HTTP layer relies on wrapped errors keeping their original code.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "poll not found"}
		s.Equal("poll not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeCSRFInvalid}
		s.Equal("csrf_invalid", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("redis: connection refused")
		err := &Error{Code: CodeInternal, Message: "session lookup failed", Err: inner}
		s.Equal(inner, err.Unwrap())
		s.Equal(inner, errors.Unwrap(err))
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeSessionInvalid, Message: "inactive"}
		err2 := &Error{Code: CodeSessionInvalid, Message: "too long"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		s.False((&Error{Code: CodeRateLimited}).Is(&Error{Code: CodeInternal}))
	})

	s.Run("does not match non-domain errors", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not found")))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeNotFound, Message: "original"}
		wrapped := fmt.Errorf("store: %w", inner)
		s.True(errors.Is(wrapped, &Error{Code: CodeNotFound}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code when wrapping domain error", func() {
		original := New(CodeConflict, "already voted")
		wrapped := Wrap(original, CodeInternal, "cast vote failed")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeConflict, domainErr.Code)
		s.Equal("cast vote failed", domainErr.Message)
	})

	s.Run("uses provided code when wrapping non-domain error", func() {
		wrapped := Wrap(errors.New("database timeout"), CodeInternal, "service error")
		s.True(HasCode(wrapped, CodeInternal))
	})

	s.Run("wrapped error is accessible via Unwrap", func() {
		original := errors.New("root cause")
		s.True(errors.Is(Wrap(original, CodeInternal, "service error"), original))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("finds code through error chain", func() {
		inner := New(CodeAuthenticationRequired, "sign in")
		s.True(HasCode(Wrap(inner, CodeInternal, "wrapped"), CodeAuthenticationRequired))
	})

	s.Run("returns false for non-domain and nil errors", func() {
		s.False(HasCode(errors.New("regular error"), CodeNotFound))
		s.False(HasCode(nil, CodeNotFound))
	})
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(CodeRateLimited, CodeOf(New(CodeRateLimited, "slow down")))
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
}
