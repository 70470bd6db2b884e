package access

import (
	"errors"
	"fmt"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/timepoint"
)

var (
	// ErrUnauthorized matches every *ErrUnauthorizedAccount.
	ErrUnauthorized = errors.New("unauthorized account")
	// ErrAdminDelay matches every *ErrEnforcedDefaultAdminDelay.
	ErrAdminDelay = errors.New("default admin delay not reached")
	// ErrInvalidAdmin matches every *ErrInvalidDefaultAdmin.
	ErrInvalidAdmin = errors.New("invalid default admin")

	ErrEnforcedDefaultAdminRules = errors.New("default admin rules enforced")
	ErrBadConfirmation           = errors.New("bad renounce confirmation")
)

// ErrUnauthorizedAccount the account does not hold the role needed for the call.
type ErrUnauthorizedAccount struct {
	Account    common.Address
	NeededRole Role
}

func (e *ErrUnauthorizedAccount) Error() string {
	return fmt.Sprintf("account %s is missing role %s", e.Account, e.NeededRole)
}

func (e *ErrUnauthorizedAccount) Is(target error) bool { return target == ErrUnauthorized }

// ErrInvalidDefaultAdmin the account cannot become the default admin.
type ErrInvalidDefaultAdmin struct {
	Account common.Address
}

func (e *ErrInvalidDefaultAdmin) Error() string {
	return fmt.Sprintf("invalid default admin %s", e.Account)
}

func (e *ErrInvalidDefaultAdmin) Is(target error) bool { return target == ErrInvalidAdmin }

// ErrEnforcedDefaultAdminDelay the pending schedule has not been reached yet.
// Schedule is zero when nothing was scheduled at all.
type ErrEnforcedDefaultAdminDelay struct {
	Schedule timepoint.Timepoint
}

func (e *ErrEnforcedDefaultAdminDelay) Error() string {
	return fmt.Sprintf("default admin delay enforced until %s", e.Schedule)
}

func (e *ErrEnforcedDefaultAdminDelay) Is(target error) bool { return target == ErrAdminDelay }
