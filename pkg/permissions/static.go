package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Static is an in-memory oracle populated by explicit grants. Used in tests
// and for single-node deployments driven by a roles file.
type Static struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool // user/space -> permission key
	admins map[string]bool            // user/space
}

func NewStatic() *Static {
	return &Static{
		grants: make(map[string]map[string]bool),
		admins: make(map[string]bool),
	}
}

func scopeKey(userID, spaceID string) string {
	return userID + "/" + spaceID
}

// Grant gives a user a permission within a space.
func (s *Static) Grant(userID, spaceID, permissionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := scopeKey(userID, spaceID)
	if s.grants[scope] == nil {
		s.grants[scope] = make(map[string]bool)
	}

	s.grants[scope][permissionKey] = true
}

// MakeAdmin flags a user as space admin.
func (s *Static) MakeAdmin(userID, spaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.admins[scopeKey(userID, spaceID)] = true
}

func (s *Static) HasPermission(_ context.Context, userID, spaceID, permissionKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.admins[scopeKey(userID, spaceID)] {
		return true, nil
	}

	return s.grants[scopeKey(userID, spaceID)][permissionKey], nil
}

func (s *Static) IsSpaceAdmin(_ context.Context, userID, spaceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.admins[scopeKey(userID, spaceID)], nil
}

// rolesFile is the on-disk shape consumed by LoadStaticFromFile.
type rolesFile struct {
	Users []struct {
		UserID  string   `json:"user_id"`
		SpaceID string   `json:"space_id"`
		Admin   bool     `json:"admin"`
		Grants  []string `json:"grants"`
	} `json:"users"`
}

// LoadStaticFromFile builds a static oracle from a JSON roles file.
func LoadStaticFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	var file rolesFile

	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}

	static := NewStatic()

	for _, user := range file.Users {
		if user.Admin {
			static.MakeAdmin(user.UserID, user.SpaceID)
		}

		for _, grant := range user.Grants {
			static.Grant(user.UserID, user.SpaceID, grant)
		}
	}

	return static, nil
}

// AllowAll grants every permission to every user. Development only.
type AllowAll struct{}

func (AllowAll) HasPermission(_ context.Context, _, _, _ string) (bool, error) {
	return true, nil
}

func (AllowAll) IsSpaceAdmin(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}
