package pubsuber

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"google.golang.org/grpc/codes"
)

func TestErrBuilderDefaultsToUnknown(t *testing.T) {
	c := qt.New(t)
	err := errb().Msg("boom").Err()
	var pe *Error
	c.Assert(errors.As(err, &pe), qt.IsTrue)
	c.Assert(pe.Code(), qt.Equals, codes.Unknown)
	c.Assert(pe.Error(), qt.Equals, "pubsuber: boom")
}

func TestErrBuilderCarriesCodeAndCause(t *testing.T) {
	c := qt.New(t)
	cause := errors.New("dial tcp: timeout")
	err := errb().Code(codes.Unavailable).Msg("connecting to pub/sub").Cause(cause).Err()

	var pe *Error
	c.Assert(errors.As(err, &pe), qt.IsTrue)
	c.Assert(pe.Code(), qt.Equals, codes.Unavailable)
	c.Assert(errors.Is(err, pe.Unwrap()), qt.IsTrue)
}

func TestErrBuilderMsgf(t *testing.T) {
	c := qt.New(t)
	err := errb().Code(codes.FailedPrecondition).Msgf("subscription %s: %s", "s1", "already receiving").Err()
	c.Assert(err.Error(), qt.Equals, "pubsuber: subscription s1: already receiving")
}
