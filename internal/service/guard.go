package service

import (
	"slices"

	"go.uber.org/zap"

	"go-gin-gorm-accounts/internal/domain"
)

// Op names an operation the guard knows a policy for.
type Op string

const (
	OpList             Op = "list"
	OpCreatePrivileged Op = "createPrivileged"
	OpView             Op = "view"
	OpUpdateProfile    Op = "updateProfile"
	OpUpdateCredential Op = "updateCredential"
	OpRemove           Op = "remove"
	OpAuditTombstoned  Op = "auditTombstoned"
)

// Policy is one row of the access table.
//
//	Roles        callers with one of these roles are allowed
//	Owner        a caller acting on their own id is allowed whatever the role
//	AdminBypass  ADMIN is allowed on any target id
type Policy struct {
	Roles       []domain.Role
	Owner       bool
	AdminBypass bool
}

// DefaultPolicies: admins do not bypass ownership on profile or credential
// updates.
var DefaultPolicies = map[Op]Policy{
	OpList:             {Roles: []domain.Role{domain.RoleAdmin, domain.RoleModerator}},
	OpCreatePrivileged: {Roles: []domain.Role{domain.RoleAdmin}},
	OpView:             {Owner: true, AdminBypass: true},
	OpUpdateProfile:    {Owner: true},
	OpUpdateCredential: {Owner: true},
	OpRemove:           {Owner: true, AdminBypass: true},
	OpAuditTombstoned:  {Roles: []domain.Role{domain.RoleAdmin}},
}

type Guard struct {
	policies map[Op]Policy
	log      *zap.Logger
}

func NewGuard(policies map[Op]Policy, l *zap.Logger) *Guard {
	if policies == nil {
		policies = DefaultPolicies
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Guard{policies: policies, log: l.Named("guard")}
}

// Authorize returns nil, domain.ErrUnauthorized for an anonymous caller, or
// domain.ErrForbidden. targetID is empty for operations without a target.
func (g *Guard) Authorize(caller domain.Caller, op Op, targetID string) error {
	if !caller.Authenticated() {
		g.deny(caller, op, targetID, "unauthenticated")
		return domain.ErrUnauthorized
	}
	pol, ok := g.policies[op]
	if !ok {
		g.deny(caller, op, targetID, "no_policy")
		return domain.ErrForbidden
	}
	if pol.Owner && targetID != "" && caller.ID == targetID {
		return nil
	}
	if pol.AdminBypass && caller.Role == domain.RoleAdmin {
		return nil
	}
	if len(pol.Roles) > 0 && slices.Contains(pol.Roles, caller.Role) {
		return nil
	}
	g.deny(caller, op, targetID, "not_permitted")
	return domain.ErrForbidden
}

func (g *Guard) deny(caller domain.Caller, op Op, targetID, reason string) {
	guardDenials.WithLabelValues(string(op), reason).Inc()
	g.log.Warn("access denied",
		zap.String("op", string(op)),
		zap.String("reason", reason),
		zap.String("caller", caller.ID),
		zap.String("role", string(caller.Role)),
		zap.String("target", targetID),
	)
}
