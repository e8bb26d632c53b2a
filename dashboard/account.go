package dashboard

import (
	"context"
	"net/http"
)

// Account returns the signed-in user with their account.
func (s *Service) Account(ctx context.Context) (*User, error) {
	var out User
	if err := s.get(ctx, "/api/user", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) UpdateAccount(ctx context.Context, update AccountUpdate) (*User, error) {
	var out User
	if err := s.send(ctx, http.MethodPut, "/api/user", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword rejects a mismatched confirmation locally; only the current
// and new password are sent.
func (s *Service) ChangePassword(ctx context.Context, change PasswordChange) error {
	switch {
	case change.CurrentPassword == "":
		return validationError("currentPassword", "current password is required")
	case change.NewPassword == "":
		return validationError("newPassword", "new password is required")
	case change.NewPassword != change.Confirm:
		return validationError("confirmPassword", "new passwords do not match")
	}
	return s.send(ctx, http.MethodPut, "/api/user/change-password", change, nil)
}

func (s *Service) Settings(ctx context.Context) (*AccountSettings, error) {
	var out AccountSettings
	if err := s.get(ctx, "/api/account/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) UpdateSettings(ctx context.Context, settings AccountSettings) (*AccountSettings, error) {
	var out AccountSettings
	if err := s.send(ctx, http.MethodPut, "/api/account/settings", settings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
