package access

import (
	"bytes"
	"sort"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/delay"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/timepoint"
)

// Record is the persisted form of DefaultAdminRules.
type Record struct {
	Admin           common.Address      `cbor:"1,keyasint"`
	PendingAdmin    common.Address      `cbor:"2,keyasint"`
	PendingSchedule timepoint.Timepoint `cbor:"3,keyasint"`
	DelayWord       [32]byte            `cbor:"4,keyasint"`
	IncreaseWait    timepoint.Duration  `cbor:"5,keyasint"`
	Roles           []RoleRecord        `cbor:"6,keyasint"`
}

type RoleRecord struct {
	Role    Role             `cbor:"1,keyasint"`
	Admin   Role             `cbor:"2,keyasint"`
	Members []common.Address `cbor:"3,keyasint"`
}

// Record captures the rules in a deterministic order.
func (r *DefaultAdminRules) Record() (rec Record) {
	r.state.View(func() {
		rec = Record{
			Admin:           r.currentAdmin,
			PendingAdmin:    r.pendingAdmin,
			PendingSchedule: r.pendingSchedule,
			DelayWord:       r.delay.Word().Bytes32(),
			IncreaseWait:    r.increaseWait,
		}
		for role, data := range r.roles {
			rr := RoleRecord{Role: role, Admin: data.admin}
			for m := range data.members {
				rr.Members = append(rr.Members, m)
			}
			sort.Slice(rr.Members, func(i, j int) bool {
				return bytes.Compare(rr.Members[i][:], rr.Members[j][:]) < 0
			})
			rec.Roles = append(rec.Roles, rr)
		}
	})
	sort.Slice(rec.Roles, func(i, j int) bool {
		return bytes.Compare(rec.Roles[i].Role[:], rec.Roles[j].Role[:]) < 0
	})
	return rec
}

// Restore rebuilds rules deployed at self from a record.
func Restore(state *ledger.State, self common.Address, rec Record) *DefaultAdminRules {
	r := newDefaultAdminRules(state, self, WithDelayIncreaseWait(rec.IncreaseWait))
	r.currentAdmin = rec.Admin
	r.pendingAdmin = rec.PendingAdmin
	r.pendingSchedule = rec.PendingSchedule
	r.delay = delay.FromWord(new(uint256.Int).SetBytes32(rec.DelayWord[:]))
	for _, rr := range rec.Roles {
		data := &roleData{members: make(map[common.Address]struct{}, len(rr.Members)), admin: rr.Admin}
		for _, m := range rr.Members {
			data.members[m] = struct{}{}
		}
		r.roles[rr.Role] = data
	}
	return r
}
