package ledger

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrAddressInUse        = errors.New("address already has a contract")
	ErrOutOfGas            = errors.New("out of gas")
	ErrZeroAddress         = errors.New("zero address")
)
