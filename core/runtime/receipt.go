package runtime

import (
	"errors"

	"rewardcenter/core/types"
	"rewardcenter/native/rewardcenter"
)

type codedError interface {
	ErrorCode() uint32
	ErrorKind() string
}

const (
	codeExecution = 1
	kindExecution = "ExecutionError"
)

func receiptError(err error) *types.ReceiptError {
	if err == nil {
		return nil
	}
	out := &types.ReceiptError{Code: codeExecution, Kind: kindExecution, Message: err.Error()}
	var coded codedError
	switch {
	case errors.As(err, &coded):
		out.Code, out.Kind = coded.ErrorCode(), coded.ErrorKind()
	case errors.Is(err, types.ErrUndeclaredAccount), errors.Is(err, types.ErrReadOnlyAccount), errors.Is(err, types.ErrMissingAccount):
		out.Code, out.Kind = rewardcenter.KindAddressMismatch.Code(), rewardcenter.KindAddressMismatch.String()
	}
	return out
}
