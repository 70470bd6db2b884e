package relay

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto/secp256k1"
	"github.com/eigerco/custodian/internal/crypto/typeddata"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/timepoint"
	"github.com/eigerco/custodian/pkg/log"
)

// ExecutedForwardRequest is emitted for every request the forwarder ran,
// whether or not the forwarded call succeeded.
type ExecutedForwardRequest struct {
	Signer  common.Address
	Nonce   *uint256.Int
	Success bool
}

// Forwarder relays requests signed by one account and submitted by another.
// The signer's address is appended to the forwarded input so that targets
// trusting this forwarder can recover it (see Context).
//
// A Forwarder lives at domain.VerifyingContract on a ledger and holds the
// value of the requests it relays for the span of a transaction. Each signer
// has a nonce that only ever grows.
type Forwarder struct {
	state  *ledger.State
	domain typeddata.Domain
	nonces map[common.Address]*uint256.Int
}

func NewForwarder(state *ledger.State, domain typeddata.Domain) (*Forwarder, error) {
	if domain.VerifyingContract.IsZero() {
		return nil, fmt.Errorf("%w: forwarder address", ledger.ErrZeroAddress)
	}
	if domain.ChainID == nil {
		domain.ChainID = new(uint256.Int)
	}
	return &Forwarder{
		state:  state,
		domain: domain,
		nonces: make(map[common.Address]*uint256.Int),
	}, nil
}

func (f *Forwarder) Address() common.Address {
	return f.domain.VerifyingContract
}

// Domain is the typed data domain requests must be signed for.
func (f *Forwarder) Domain() typeddata.Domain {
	return f.domain
}

// Nonces returns the nonce the next request from account must carry.
func (f *Forwarder) Nonces(account common.Address) (nonce *uint256.Int) {
	f.state.View(func() { nonce = f.nonce(account) })
	return nonce
}

// Verify reports whether req would be accepted now. It never fails.
func (f *Forwarder) Verify(req *ForwardRequest) (ok bool) {
	if req == nil {
		return false
	}
	f.state.View(func() { ok = f.validate(req, f.state.Now()) == nil })
	return ok
}

// Execute runs req in one transaction. The value attached by msg must equal
// the request value. When the forwarded call fails the transaction still
// consumes the nonce and records the failure, but returns the attached value
// and reports *ErrFailedInnerCall.
func (f *Forwarder) Execute(msg ledger.Message, req *ForwardRequest) error {
	if req == nil {
		return ErrInvalidRequest
	}
	attached := msg.AttachedValue()
	if requested := cloneOrZero(req.Value); !requested.Eq(attached) {
		Measures.Requests.WithLabelValues(outcomeRejected).Inc()
		return &ErrMismatchedValue{Requested: requested, Attached: attached.Clone()}
	}

	var innerErr error
	_, err := f.state.Transact(func() error {
		snap := f.state.Snapshot()
		if err := f.state.Transfer(msg.Sender, f.Address(), attached); err != nil {
			return err
		}
		if err := f.validate(req, f.state.Now()); err != nil {
			return err
		}
		if innerErr = f.forward(req); innerErr != nil {
			f.recordFailure(snap, req)
		}
		return nil
	})
	switch {
	case err != nil:
		Measures.Requests.WithLabelValues(outcomeRejected).Inc()
		return err
	case innerErr != nil:
		Measures.Requests.WithLabelValues(outcomeFailed).Inc()
		log.Relay.Warn().Err(innerErr).Stringer("signer", req.From).Stringer("to", req.To).Msg("forwarded call failed")
		return &ErrFailedInnerCall{Err: innerErr}
	}
	Measures.Requests.WithLabelValues(outcomeExecuted).Inc()
	log.Relay.Debug().Stringer("signer", req.From).Str("nonce", cloneOrZero(req.Nonce).Dec()).Msg("forward request executed")
	return nil
}

// ExecuteBatch runs every request in one transaction. The value attached by
// msg must equal the sum of the request values.
//
// With a zero refundReceiver the batch is atomic: the first request that
// does not verify fails the whole batch with its error. Otherwise requests
// that do not verify are skipped, their nonce untouched, and their value is
// sent to refundReceiver. A verified request whose forwarded call fails
// always fails the batch, consuming only that request's nonce.
//
// The result tells which requests were executed.
func (f *Forwarder) ExecuteBatch(msg ledger.Message, reqs []*ForwardRequest, refundReceiver common.Address) ([]bool, error) {
	attached := msg.AttachedValue()
	requested := new(uint256.Int)
	for i, req := range reqs {
		if req == nil {
			return nil, fmt.Errorf("request %d: %w", i, ErrInvalidRequest)
		}
		if _, overflow := requested.AddOverflow(requested, cloneOrZero(req.Value)); overflow {
			return nil, fmt.Errorf("%w: batch value overflows", ErrInvalidRequest)
		}
	}
	if !requested.Eq(attached) {
		Measures.Requests.WithLabelValues(outcomeRejected).Add(float64(len(reqs)))
		return nil, &ErrMismatchedValue{Requested: requested, Attached: attached.Clone()}
	}
	Measures.BatchSize.Observe(float64(len(reqs)))

	atomic := refundReceiver.IsZero()
	executed := make([]bool, len(reqs))
	var (
		innerErr error
		skipped  int
	)
	_, err := f.state.Transact(func() error {
		snap := f.state.Snapshot()
		now := f.state.Now()
		if err := f.state.Transfer(msg.Sender, f.Address(), attached); err != nil {
			return err
		}

		refund := new(uint256.Int)
		for i, req := range reqs {
			if err := f.validate(req, now); err != nil {
				if atomic {
					return fmt.Errorf("request %d: %w", i, err)
				}
				log.Relay.Warn().Err(err).Int("index", i).Stringer("signer", req.From).Msg("skipping invalid request")
				refund.Add(refund, cloneOrZero(req.Value))
				skipped++
				continue
			}
			if innerErr = f.forward(req); innerErr != nil {
				innerErr = fmt.Errorf("request %d: %w", i, innerErr)
				f.recordFailure(snap, req)
				return nil
			}
			executed[i] = true
		}

		if !refund.IsZero() {
			if err := f.state.Transfer(f.Address(), refundReceiver, refund); err != nil {
				return fmt.Errorf("refund %s: %w", refundReceiver, err)
			}
		}
		return nil
	})
	if err != nil {
		Measures.Requests.WithLabelValues(outcomeRejected).Add(float64(len(reqs)))
		return nil, err
	}
	if innerErr != nil {
		Measures.Requests.WithLabelValues(outcomeFailed).Inc()
		log.Relay.Warn().Err(innerErr).Msg("forwarded call in batch failed")
		return nil, &ErrFailedInnerCall{Err: innerErr}
	}

	Measures.Requests.WithLabelValues(outcomeExecuted).Add(float64(len(reqs) - skipped))
	Measures.Requests.WithLabelValues(outcomeSkipped).Add(float64(skipped))
	Measures.Refunded.Add(float64(skipped))
	return executed, nil
}

// validate runs the checks in order: signature, nonce, deadline, trust.
func (f *Forwarder) validate(req *ForwardRequest, now timepoint.Timepoint) error {
	signer, err := secp256k1.RecoverAddress(req.Digest(f.domain), req.Signature)
	if err != nil || signer != req.From {
		return &ErrInvalidSigner{Signer: signer, From: req.From}
	}
	if expected, got := f.nonce(req.From), cloneOrZero(req.Nonce); !expected.Eq(got) {
		return &ErrNonceMismatch{Signer: signer, Expected: expected, Got: got}
	}
	if now > req.Deadline {
		return &ErrExpiredRequest{Deadline: req.Deadline}
	}
	if !f.trustedBy(req.To) {
		return &ErrUntrustfulTarget{Target: req.To, Forwarder: f.Address()}
	}
	return nil
}

func (f *Forwarder) trustedBy(target common.Address) bool {
	c, ok := f.state.ContractAt(target)
	if !ok {
		return false
	}
	t, ok := c.(TrustingTarget)
	return ok && t.IsTrustedForwarder(f.Address())
}

// forward consumes the request's nonce and calls its target with the signer
// appended to the data.
func (f *Forwarder) forward(req *ForwardRequest) error {
	nonce := cloneOrZero(req.Nonce)
	f.consumeNonce(req.From, nonce)

	input := make([]byte, 0, len(req.Data)+common.AddressSize)
	input = append(input, req.Data...)
	input = append(input, req.From[:]...)
	_, err := f.state.Call(f.Address(), req.To, cloneOrZero(req.Value), ledger.GasFromUint256(req.Gas), input)

	f.state.Emit(f.Address(), ExecutedForwardRequest{Signer: req.From, Nonce: nonce, Success: err == nil})
	return err
}

// recordFailure reverts the transaction back to snap and keeps only the
// consumed nonce of req and the failure event.
func (f *Forwarder) recordFailure(snap int, req *ForwardRequest) {
	f.state.RevertToSnapshot(snap)
	nonce := cloneOrZero(req.Nonce)
	f.consumeNonce(req.From, nonce)
	f.state.Emit(f.Address(), ExecutedForwardRequest{Signer: req.From, Nonce: nonce, Success: false})
}

func (f *Forwarder) nonce(account common.Address) *uint256.Int {
	if n, ok := f.nonces[account]; ok {
		return n.Clone()
	}
	return new(uint256.Int)
}

// consumeNonce moves the nonce of account past used.
func (f *Forwarder) consumeNonce(account common.Address, used *uint256.Int) {
	prev, had := f.nonces[account]
	f.state.AddJournalEntry(func() {
		if had {
			f.nonces[account] = prev
		} else {
			delete(f.nonces, account)
		}
	})
	f.nonces[account] = new(uint256.Int).AddUint64(used, 1)
}

// NonceRecord is the persisted nonce of one account.
type NonceRecord struct {
	Account common.Address
	Nonce   *uint256.Int
}

// ForEachNonce visits every account that has used a nonce.
func (f *Forwarder) ForEachNonce(fn func(NonceRecord)) {
	f.state.View(func() {
		for account, n := range f.nonces {
			fn(NonceRecord{Account: account, Nonce: n.Clone()})
		}
	})
}

// LoadNonce restores a persisted nonce outside of any transaction.
func (f *Forwarder) LoadNonce(rec NonceRecord) error {
	if rec.Nonce == nil {
		return errors.New("missing nonce")
	}
	f.nonces[rec.Account] = rec.Nonce.Clone()
	return nil
}
