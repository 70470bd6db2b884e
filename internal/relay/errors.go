package relay

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/timepoint"
)

// Sentinels matched by errors.Is against the typed errors below.
var (
	ErrSignature      = errors.New("invalid signer")
	ErrNonce          = errors.New("nonce mismatch")
	ErrExpired        = errors.New("expired request")
	ErrUntrusted      = errors.New("untrustful target")
	ErrValue          = errors.New("mismatched value")
	ErrInnerCall      = errors.New("failed inner call")
	ErrInvalidRequest = errors.New("invalid request")
)

// ErrInvalidSigner the signature recovers to Signer, not to the request's From.
// Signer is zero when nothing could be recovered.
type ErrInvalidSigner struct {
	Signer common.Address
	From   common.Address
}

func (e *ErrInvalidSigner) Error() string {
	return fmt.Sprintf("invalid signer %s for request from %s", e.Signer, e.From)
}

func (e *ErrInvalidSigner) Is(target error) bool { return target == ErrSignature }

type ErrNonceMismatch struct {
	Signer   common.Address
	Expected *uint256.Int
	Got      *uint256.Int
}

func (e *ErrNonceMismatch) Error() string {
	return fmt.Sprintf("nonce mismatch for %s: expected %s, got %s", e.Signer, e.Expected.Dec(), e.Got.Dec())
}

func (e *ErrNonceMismatch) Is(target error) bool { return target == ErrNonce }

type ErrExpiredRequest struct {
	Deadline timepoint.Timepoint
}

func (e *ErrExpiredRequest) Error() string {
	return fmt.Sprintf("request expired at %s", e.Deadline)
}

func (e *ErrExpiredRequest) Is(target error) bool { return target == ErrExpired }

// ErrUntrustfulTarget Target does not accept requests relayed by Forwarder.
type ErrUntrustfulTarget struct {
	Target    common.Address
	Forwarder common.Address
}

func (e *ErrUntrustfulTarget) Error() string {
	return fmt.Sprintf("target %s does not trust forwarder %s", e.Target, e.Forwarder)
}

func (e *ErrUntrustfulTarget) Is(target error) bool { return target == ErrUntrusted }

// ErrMismatchedValue the value attached to the call differs from the value
// the request or batch asks for.
type ErrMismatchedValue struct {
	Requested *uint256.Int
	Attached  *uint256.Int
}

func (e *ErrMismatchedValue) Error() string {
	return fmt.Sprintf("requested value %s, attached %s", e.Requested.Dec(), e.Attached.Dec())
}

func (e *ErrMismatchedValue) Is(target error) bool { return target == ErrValue }

// ErrFailedInnerCall the forwarded call itself failed with Err.
type ErrFailedInnerCall struct {
	Err error
}

func (e *ErrFailedInnerCall) Error() string {
	return fmt.Sprintf("forwarded call failed: %v", e.Err)
}

func (e *ErrFailedInnerCall) Unwrap() error { return e.Err }

func (e *ErrFailedInnerCall) Is(target error) bool { return target == ErrInnerCall }
