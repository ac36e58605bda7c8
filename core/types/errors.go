package types

import "errors"

// Access errors raised when a program touches accounts its instruction did
// not declare, or writes accounts declared read-only.
var (
	ErrUndeclaredAccount = errors.New("account not declared by instruction")
	ErrReadOnlyAccount   = errors.New("account declared read-only")
	ErrMissingAccount    = errors.New("instruction account missing")
)
