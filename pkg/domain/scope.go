package domain

import (
	"strings"

	dErrors "hushmcp/pkg/domain-errors"
)

// ConsentScope is a domain value that names the permission a consent token or
// trust link carries. Invariant: the value must come from the closed scope
// registry; free-form scope strings never validate and never match.
//
// Usage: construct via ParseConsentScope at trust boundaries to enforce the
// registry; direct casting bypasses validation.
type ConsentScope string

// ScopeRegistryVersion identifies the registry generation. Bump when scopes
// are added or retired so recorded consents can be interpreted later.
const ScopeRegistryVersion = "v1"

// Registry v1 scopes.
const (
	ScopeVaultReadEmail    ConsentScope = "vault.read.email"
	ScopeVaultReadPhone    ConsentScope = "vault.read.phone"
	ScopeVaultReadFinance  ConsentScope = "vault.read.finance"
	ScopeVaultReadContacts ConsentScope = "vault.read.contacts"
	ScopeVaultReadCalendar ConsentScope = "vault.read.calendar"
	ScopeVaultReadAll      ConsentScope = "vault.read.*"

	ScopeAgentShoppingPurchase ConsentScope = "agent.shopping.purchase"
	ScopeAgentFinanceAnalyze   ConsentScope = "agent.finance.analyze"
	ScopeAgentIdentityVerify   ConsentScope = "agent.identity.verify"
	ScopeAgentSalesOptimize    ConsentScope = "agent.sales.optimize"

	ScopeCustomTemporary    ConsentScope = "custom.temporary"
	ScopeCustomSessionWrite ConsentScope = "custom.session.write"
)

// validConsentScopes is the single source of truth for the scope registry.
var validConsentScopes = map[ConsentScope]bool{
	ScopeVaultReadEmail:    true,
	ScopeVaultReadPhone:    true,
	ScopeVaultReadFinance:  true,
	ScopeVaultReadContacts: true,
	ScopeVaultReadCalendar: true,
	ScopeVaultReadAll:      true,

	ScopeAgentShoppingPurchase: true,
	ScopeAgentFinanceAnalyze:   true,
	ScopeAgentIdentityVerify:   true,
	ScopeAgentSalesOptimize:    true,

	ScopeCustomTemporary:    true,
	ScopeCustomSessionWrite: true,
}

// ParseConsentScope constructs a ConsentScope from external input.
//
// Usage: call from handlers and token parsing when reading scope strings.
//
// Errors: returns CodeInvalidInput when the value is empty or not in the
// registry; no other errors are expected.
func ParseConsentScope(s string) (ConsentScope, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "scope cannot be empty")
	}
	scope := ConsentScope(s)
	if !scope.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown scope %q", s)
	}
	return scope, nil
}

// IsValid checks if the scope is one of the registry values.
func (s ConsentScope) IsValid() bool {
	return validConsentScopes[s]
}

// Matches reports whether a grant of s satisfies a requirement of required.
// True iff the scopes are equal, or s is a wildcard ancestor of required
// (vault.read.* matches vault.read.email). Both sides must be registry
// values; anything unknown matches nothing.
func (s ConsentScope) Matches(required ConsentScope) bool {
	if !s.IsValid() || !required.IsValid() {
		return false
	}
	if s == required {
		return true
	}
	if prefix, ok := strings.CutSuffix(string(s), "*"); ok {
		return strings.HasPrefix(string(required), prefix) && required != s
	}
	return false
}

// String returns the string representation of the scope.
func (s ConsentScope) String() string {
	return string(s)
}

// RegistryScopes returns all registry values, for admin listings. The result
// is a fresh slice; callers may reorder it.
func RegistryScopes() []ConsentScope {
	scopes := make([]ConsentScope, 0, len(validConsentScopes))
	for s := range validConsentScopes {
		scopes = append(scopes, s)
	}
	return scopes
}
