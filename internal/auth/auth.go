// Package auth resolves API keys to tenant identities.
package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Roles understood by the API. Admin satisfies every role check.
const (
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

type Identity struct {
	TenantID string
	Roles    []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role) || slices.Contains(i.Roles, RoleAdmin)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator holds keys parsed from a comma separated list of
// key:tenant:role|role entries.
type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

func NewStaticAPIKeyValidator(list string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, identity, err := parseStaticKey(entry)
		if err != nil {
			return nil, err
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("duplicate static key entry for tenant %q", identity.TenantID)
		}
		validator.keys[key] = identity
	}
	return validator, nil
}

func parseStaticKey(entry string) (string, Identity, error) {
	key, rest, ok := strings.Cut(entry, ":")
	if !ok {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: expected key:tenant:role|role", entry)
	}
	tenant, roleList, ok := strings.Cut(rest, ":")
	if !ok || strings.Contains(roleList, ":") {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: expected key:tenant:role|role", entry)
	}
	key = strings.TrimSpace(key)
	tenant = strings.TrimSpace(tenant)
	if key == "" || tenant == "" {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: empty key/tenant", entry)
	}

	var roles []string
	for _, role := range strings.Split(roleList, "|") {
		role = strings.TrimSpace(role)
		switch role {
		case "":
			continue
		case RoleAnalyst, RoleAdmin:
			roles = append(roles, role)
		default:
			return "", Identity{}, fmt.Errorf("invalid static key entry %q: unknown role %q", entry, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
	}
	slices.Sort(roles)
	return key, Identity{TenantID: tenant, Roles: slices.Compact(roles)}, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}

// Len reports how many keys are configured.
func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}
