package access

import (
	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/pkg/log"
)

type roleData struct {
	members map[common.Address]struct{}
	admin   Role
}

// roleRegistry keeps role membership and admin pointers. Its methods expect
// to run inside a ledger transaction; every change is journaled on state.
type roleRegistry struct {
	state *ledger.State
	self  common.Address
	roles map[Role]*roleData
}

func newRoleRegistry(state *ledger.State, self common.Address) roleRegistry {
	return roleRegistry{
		state: state,
		self:  self,
		roles: make(map[Role]*roleData),
	}
}

func (r *roleRegistry) hasRole(role Role, account common.Address) bool {
	data, ok := r.roles[role]
	if !ok {
		return false
	}
	_, ok = data.members[account]
	return ok
}

func (r *roleRegistry) roleAdmin(role Role) Role {
	if data, ok := r.roles[role]; ok {
		return data.admin
	}
	return DefaultAdminRole
}

func (r *roleRegistry) checkRole(role Role, account common.Address) error {
	if !r.hasRole(role, account) {
		return &ErrUnauthorizedAccount{Account: account, NeededRole: role}
	}
	return nil
}

func (r *roleRegistry) data(role Role) *roleData {
	data, ok := r.roles[role]
	if !ok {
		data = &roleData{members: make(map[common.Address]struct{})}
		r.roles[role] = data
		r.state.AddJournalEntry(func() { delete(r.roles, role) })
	}
	return data
}

// grantRole adds account to role. It reports false, emitting nothing, when
// the account already holds the role.
func (r *roleRegistry) grantRole(role Role, account, sender common.Address) bool {
	if r.hasRole(role, account) {
		return false
	}
	data := r.data(role)
	data.members[account] = struct{}{}
	r.state.AddJournalEntry(func() { delete(data.members, account) })
	r.state.Emit(r.self, RoleGranted{Role: role, Account: account, Sender: sender})
	log.Governance.Debug().Stringer("role", role).Stringer("account", account).Msg("role granted")
	return true
}

// revokeRole removes account from role. It reports false, emitting nothing,
// when the account does not hold the role.
func (r *roleRegistry) revokeRole(role Role, account, sender common.Address) bool {
	if !r.hasRole(role, account) {
		return false
	}
	data := r.roles[role]
	delete(data.members, account)
	r.state.AddJournalEntry(func() { data.members[account] = struct{}{} })
	r.state.Emit(r.self, RoleRevoked{Role: role, Account: account, Sender: sender})
	log.Governance.Debug().Stringer("role", role).Stringer("account", account).Msg("role revoked")
	return true
}

func (r *roleRegistry) setRoleAdmin(role, admin Role) {
	data := r.data(role)
	previous := data.admin
	data.admin = admin
	r.state.AddJournalEntry(func() { data.admin = previous })
	r.state.Emit(r.self, RoleAdminChanged{Role: role, PreviousAdminRole: previous, NewAdminRole: admin})
}
