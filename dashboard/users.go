package dashboard

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Users lists the account's sub-users.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	var out envelope[[]User]
	if err := s.get(ctx, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateUser adds a sub-user with the given permission names.
func (s *Service) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return nil, validationError("name", "name is required")
	}
	if !validEmail(u.Email) {
		return nil, validationError("email", "valid email is required")
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	var out envelope[User]
	if err := s.send(ctx, http.MethodPost, "/api/users", u, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (s *Service) User(ctx context.Context, id string) (*User, error) {
	var raw []byte
	if err := s.get(ctx, pathID("/api/users", id, ""), nil, &raw); err != nil {
		return nil, err
	}
	return decodeMaybeEnveloped[User](raw)
}

// UserPermissions returns the permissions granted to a user; a missing list
// is an empty slice.
func (s *Service) UserPermissions(ctx context.Context, id string) ([]GrantedPermission, error) {
	var raw []byte
	if err := s.get(ctx, pathID("/api/users", id, "/permissions"), nil, &raw); err != nil {
		return nil, err
	}
	perms, err := decodeMaybeEnveloped[[]GrantedPermission](raw)
	if err != nil {
		return nil, err
	}
	if *perms == nil {
		return []GrantedPermission{}, nil
	}
	return *perms, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, u UserUpdate) (*User, error) {
	if u.Email != "" && !validEmail(u.Email) {
		return nil, validationError("email", "valid email is required")
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	var out envelope[User]
	if err := s.send(ctx, http.MethodPut, pathID("/api/users", id, ""), u, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Permissions lists every permission that can be granted.
func (s *Service) Permissions(ctx context.Context) ([]Permission, error) {
	var raw []byte
	if err := s.get(ctx, "/api/permissions", nil, &raw); err != nil {
		return nil, err
	}
	perms, err := decodeMaybeEnveloped[[]Permission](raw)
	if err != nil {
		return nil, err
	}
	return *perms, nil
}

// AuthenticatedProducts pages through the products an authenticator user
// has certified. page starts at 1.
func (s *Service) AuthenticatedProducts(ctx context.Context, userID string, page int, search string) (*ProductPage, error) {
	var out ProductPage
	if err := s.get(ctx, pathID("/api/users", userID, "/authenticated-products"), pageQuery(page, search), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func pageQuery(page int, search string) url.Values {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	if search = strings.TrimSpace(search); search != "" {
		q.Set("search", search)
	}
	return q
}
