// Package permissions defines the capability-check interface the transition
// engine consults and the pluggable resolvers behind it. The engine never
// assumes a role taxonomy beyond this boolean contract.
package permissions

import "context"

// Oracle answers capability questions for a user within a space. A space
// admin implicitly satisfies any permission the engine asks about.
type Oracle interface {
	HasPermission(ctx context.Context, userID, spaceID, permissionKey string) (bool, error)
	IsSpaceAdmin(ctx context.Context, userID, spaceID string) (bool, error)
}

// Role is one named bundle of grants a user holds within a space.
type Role struct {
	Name   string   `json:"name"`
	Admin  bool     `json:"admin"`
	Grants []string `json:"grants"`
}

// RoleStore resolves the roles a user holds within a space. It is the
// external collaborator boundary: membership and role management live
// outside this module.
type RoleStore interface {
	RolesFor(ctx context.Context, userID, spaceID string) ([]Role, error)
}

// RoleOracle answers permission checks from a RoleStore: a permission is
// granted when any role carries the grant, admin when any role is flagged.
type RoleOracle struct {
	store RoleStore
}

func NewRoleOracle(store RoleStore) *RoleOracle {
	return &RoleOracle{store: store}
}

func (o *RoleOracle) HasPermission(ctx context.Context, userID, spaceID, permissionKey string) (bool, error) {
	roles, err := o.store.RolesFor(ctx, userID, spaceID)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		if role.Admin {
			return true, nil
		}

		for _, grant := range role.Grants {
			if grant == permissionKey {
				return true, nil
			}
		}
	}

	return false, nil
}

func (o *RoleOracle) IsSpaceAdmin(ctx context.Context, userID, spaceID string) (bool, error) {
	roles, err := o.store.RolesFor(ctx, userID, spaceID)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		if role.Admin {
			return true, nil
		}
	}

	return false, nil
}
