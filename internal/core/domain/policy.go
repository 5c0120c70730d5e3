package domain

// Operation is an action whose permission depends on who acts on whom.
type Operation string

const (
	OpDeleteUser    Operation = "delete_user"
	OpChangeRole    Operation = "change_role"
	OpChangeOwnRole Operation = "change_own_role"
)

// Operations lists every operation known to Authorize.
func Operations() []Operation {
	return []Operation{OpDeleteUser, OpChangeRole, OpChangeOwnRole}
}

// Reason explains a Decision. The zero value means the operation is allowed.
type Reason string

const (
	ReasonAllowed                    Reason = ""
	ReasonCannotDeleteSelf           Reason = "cannot delete self"
	ReasonCannotChangeOwnRole        Reason = "cannot change own role"
	ReasonInsufficientRole           Reason = "insufficient role"
	ReasonManagersCannotDeleteAdmins Reason = "managers cannot delete admins"
	ReasonNotPermitted               Reason = "operation not permitted"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason Reason `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allow: true} }

func deny(r Reason) Decision { return Decision{Reason: r} }

// Err converts a denial into an error of the matching kind. Self-targeted
// denials are bad requests; everything else is a lack of authority.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	switch d.Reason {
	case ReasonCannotDeleteSelf, ReasonCannotChangeOwnRole:
		return NewKindError(ErrBadRequest, string(d.Reason))
	case ReasonAllowed:
		return NewKindError(ErrForbidden, string(ReasonNotPermitted))
	default:
		return NewKindError(ErrForbidden, string(d.Reason))
	}
}

// deleteAuthority says, per actor role, whether the actor may delete a
// target holding the given role. Roles missing from the table delete no one.
var deleteAuthority = map[Role]func(target Role) Decision{
	RoleAdmin: func(Role) Decision { return allow() },
	RoleManager: func(target Role) Decision {
		if target == RoleAdmin {
			return deny(ReasonManagersCannotDeleteAdmins)
		}
		return allow()
	},
	RoleUser: func(Role) Decision { return deny(ReasonInsufficientRole) },
}

// Authorize decides whether actor may perform op on target. Rules are
// evaluated in order and the first match wins; anything unmatched is denied.
func Authorize(actor, target *User, op Operation) Decision {
	if actor == nil {
		return deny(ReasonNotPermitted)
	}
	if op == OpChangeOwnRole {
		return deny(ReasonCannotChangeOwnRole)
	}
	if target == nil {
		return deny(ReasonNotPermitted)
	}

	self := target.ID == actor.ID

	switch op {
	case OpDeleteUser:
		if self {
			return deny(ReasonCannotDeleteSelf)
		}
		rule, ok := deleteAuthority[actor.Role]
		if !ok {
			return deny(ReasonInsufficientRole)
		}
		return rule(target.Role)

	case OpChangeRole:
		if self {
			return deny(ReasonCannotChangeOwnRole)
		}
		if actor.Role != RoleAdmin {
			return deny(ReasonInsufficientRole)
		}
		return allow()
	}

	return deny(ReasonNotPermitted)
}
