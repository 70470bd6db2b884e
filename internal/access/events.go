package access

import (
	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/timepoint"
)

type RoleGranted struct {
	Role    Role
	Account common.Address
	Sender  common.Address
}

type RoleRevoked struct {
	Role    Role
	Account common.Address
	Sender  common.Address
}

type RoleAdminChanged struct {
	Role              Role
	PreviousAdminRole Role
	NewAdminRole      Role
}

// DefaultAdminTransferScheduled a transfer to NewAdmin can be accepted from AcceptSchedule on.
type DefaultAdminTransferScheduled struct {
	NewAdmin       common.Address
	AcceptSchedule timepoint.Timepoint
}

// DefaultAdminTransferCanceled a pending transfer was dropped or overwritten.
type DefaultAdminTransferCanceled struct{}

type DefaultAdminDelayChangeScheduled struct {
	NewDelay       uint32
	EffectSchedule timepoint.Timepoint
}

// DefaultAdminDelayChangeCanceled a delay change was dropped before taking effect.
type DefaultAdminDelayChangeCanceled struct{}
