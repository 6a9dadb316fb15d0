package errs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Gateway error codes. Every error surfaced to a client carries one of
// these; codes are stable and part of the wire contract.
const (
	CodeAuthentication   = 1101 // bad/expired credential at handshake
	CodeForbidden        = 1102 // collaborator denied authorization
	CodeNotAuthenticated = 1103 // action before handshake completed
	CodeNotAMember       = 1104 // action requires room subscription
	CodeUnavailable      = 1105 // collaborator call failed or timed out
	CodeInvalid          = 1106 // malformed event payload
	CodeInternal         = 1500
)

var (
	ErrAuthentication   = NewCodeError(CodeAuthentication, "authentication failed")
	ErrForbidden        = NewCodeError(CodeForbidden, "forbidden")
	ErrNotAuthenticated = NewCodeError(CodeNotAuthenticated, "connection not authenticated")
	ErrNotAMember       = NewCodeError(CodeNotAMember, "not a member of conversation")
	ErrUnavailable      = NewCodeError(CodeUnavailable, "service unavailable")
	ErrInvalid          = NewCodeError(CodeInvalid, "invalid payload")
	ErrInternal         = NewCodeError(CodeInternal, "internal error")
)

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

// WithDetail returns a copy carrying extra detail; the receiver is not
// mutated so the predeclared sentinels stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	r := e.clone()
	if r.Detail == "" {
		r.Detail = detail
	} else {
		r.Detail += ", " + detail
	}
	return r
}

// Wrap attaches a cause while keeping the coded error matchable with
// errors.Is / errors.As.
func (e *CodeError) Wrap(cause error) error {
	if cause == nil {
		return e
	}
	return errors.Wrap(e.WithDetail(cause.Error()), e.Msg)
}

// Is matches by code so detailed/wrapped copies compare equal to their
// sentinel.
func (e *CodeError) Is(target error) bool {
	ce, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Code == ce.Code
}

// CodeOf extracts the CodeError from an error chain, defaulting to
// ErrInternal for uncoded errors.
func CodeOf(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternal.WithDetail(err.Error())
}
