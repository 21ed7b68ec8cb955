package chain

import "github.com/pkg/errors"

var (
	ErrNoBlockchain      = errors.New("no existing blockchain found")
	ErrBlockNotFound     = errors.New("block not found")
	ErrEmptyBlock        = errors.New("block has no transactions")
	ErrTxNotFound        = errors.New("transaction not found")
	ErrInvalidSignature  = errors.New("transaction signature invalid")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be at least 1")
)
