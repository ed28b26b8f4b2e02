package pubsuber

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
)

// Error is a structured domain error returned by this package.
//
// It carries the broker status code that caused the failure, when
// there is one (retry exhaustion, a terminal RPC status). Invalid
// arguments from the caller carry codes.InvalidArgument; an error
// built without an explicit code reports codes.Unknown.
type Error struct {
	code codes.Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("pubsuber: %s: %s", e.msg, e.err)
	}
	return fmt.Sprintf("pubsuber: %s", e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the gRPC status code associated with the error, or
// codes.Unknown if none applies.
func (e *Error) Code() codes.Code { return e.code }

// errBuilder is a small fluent builder for *Error, grounded on the
// teacher repo's runtime/beta/errs builder pattern.
type errBuilder struct {
	code codes.Code
	msg  string
	err  error
}

func errb() *errBuilder { return &errBuilder{code: codes.Unknown} }

func (b *errBuilder) Code(c codes.Code) *errBuilder { b.code = c; return b }

func (b *errBuilder) Msg(msg string) *errBuilder { b.msg = msg; return b }

func (b *errBuilder) Msgf(format string, args ...interface{}) *errBuilder {
	b.msg = fmt.Sprintf(format, args...)
	return b
}

// Cause attaches the underlying error that triggered this failure. The
// error is captured with errors.Wrap so that formatting it with "%+v"
// (e.g. from a crash log) includes a stack trace pointing at the call
// site that built this *Error, not just the leaf error's own trace.
func (b *errBuilder) Cause(err error) *errBuilder {
	if err != nil {
		err = errors.Wrap(err, "pubsuber")
	}
	b.err = err
	return b
}

func (b *errBuilder) Err() error {
	return &Error{code: b.code, msg: b.msg, err: b.err}
}
