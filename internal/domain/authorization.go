package domain

import "strings"

// AuditPolicy decides which roles hold the audit capability
type AuditPolicy struct {
	roles map[string]struct{}
}

// NewAuditPolicy builds a policy from role names; matching ignores case
func NewAuditPolicy(roles []string) AuditPolicy {
	p := AuditPolicy{roles: make(map[string]struct{}, len(roles))}
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			p.roles[r] = struct{}{}
		}
	}
	return p
}

// HasAuditAccess reports whether the role may record audit counts and close inventories
func (p AuditPolicy) HasAuditAccess(role string) bool {
	_, ok := p.roles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}
