package token

import "errors"

var (
	ErrMintExists         = errors.New("token: mint already initialized")
	ErrMintNotFound       = errors.New("token: mint not found")
	ErrAccountNotFound    = errors.New("token: account not found")
	ErrMintMismatch       = errors.New("token: mint mismatch")
	ErrUnauthorized       = errors.New("token: owner signature required")
	ErrInsufficientFunds  = errors.New("token: insufficient funds")
	ErrOverflow           = errors.New("token: amount overflow")
	ErrAddressMismatch    = errors.New("token: account is not the associated address")
	ErrInvalidInstruction = errors.New("token: invalid instruction")
	errNilState           = errors.New("token: state not configured")
)
