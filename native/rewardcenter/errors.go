package rewardcenter

import (
	"errors"
	"fmt"

	"rewardcenter/core/types"
)

// ErrorKind classifies every failure the reward center reports. The numeric
// value is the stable error code surfaced in receipts.
type ErrorKind uint32

const (
	KindConfiguration ErrorKind = 6000 + iota
	KindAuthorization
	KindStateConflict
	KindAddressMismatch
	KindInsufficientFunds
	KindAdapter
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindStateConflict:
		return "StateConflictError"
	case KindAddressMismatch:
		return "AddressMismatchError"
	case KindInsufficientFunds:
		return "InsufficientFundsError"
	case KindAdapter:
		return "AdapterError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint32(k))
	}
}

// Code returns the stable numeric code of the kind.
func (k ErrorKind) Code() uint32 { return uint32(k) }

// Error is a kinded reward center failure. Err, when set, is the underlying
// cause; adapter failures keep the adapter's own error there untouched.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := "rewardcenter: " + e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare kind sentinels below, so errors.Is(err, ErrStateConflict)
// holds for every state conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// ErrorCode exposes the code to the runtime receipt builder.
func (e *Error) ErrorCode() uint32 { return e.Kind.Code() }

// ErrorKind exposes the kind name to the runtime receipt builder.
func (e *Error) ErrorKind() string { return e.Kind.String() }

var (
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrStateConflict     = &Error{Kind: KindStateConflict}
	ErrAddressMismatch   = &Error{Kind: KindAddressMismatch}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrAdapter           = &Error{Kind: KindAdapter}

	errNilState   = errors.New("rewardcenter: state not configured")
	errNilAdapter = errors.New("rewardcenter: auction house adapter not configured")
	errNilTokens  = errors.New("rewardcenter: token program not configured")
)

func newError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func adapterError(op string, err error) error {
	var kinded *Error
	if errors.As(err, &kinded) {
		return err
	}
	if isAccessError(err) {
		return &Error{Kind: KindAddressMismatch, Msg: op, Err: err}
	}
	return &Error{Kind: KindAdapter, Msg: op, Err: err}
}

// isAccessError reports runtime rejections of undeclared or read-only
// account writes.
func isAccessError(err error) bool {
	return errors.Is(err, types.ErrUndeclaredAccount) || errors.Is(err, types.ErrReadOnlyAccount) || errors.Is(err, types.ErrMissingAccount)
}

// KindOf extracts the kind from err.
func KindOf(err error) (ErrorKind, bool) {
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.Kind, true
	}
	return 0, false
}

// CodeOf returns the stable code of err, or zero for foreign errors.
func CodeOf(err error) uint32 {
	if kind, ok := KindOf(err); ok {
		return kind.Code()
	}
	return 0
}
