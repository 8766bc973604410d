package auth

import (
	"context"
	"fmt"

	"safeshield/config"
	"safeshield/core/rbac"
	"safeshield/core/store"
	"safeshield/core/utils"
)

// EnsureBootstrapAdmin creates the initial admin account when the user table
// is empty. With no configured password a random one is generated and logged
// once, flagged for change at first login.
func EnsureBootstrapAdmin(ctx context.Context, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	username := cfg.Bootstrap.AdminUsername
	if username == "" {
		username = "admin"
	}
	password := cfg.Bootstrap.AdminPassword
	generated := password == ""
	if generated {
		password, err = utils.RandString(16)
		if err != nil {
			return err
		}
	}
	ph, err := HashPassword(password, cfg.Pepper)
	if err != nil {
		return err
	}
	admin := &store.User{
		Username:              username,
		FullName:              "Administrator",
		PasswordHash:          ph.Hash,
		Salt:                  ph.Salt,
		Active:                true,
		RequirePasswordChange: generated,
	}
	if _, err := users.Create(ctx, admin, []string{rbac.RoleAdmin}); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	if generated {
		logger.Infof("bootstrap admin %q created with password %s (change required on first login)", username, password)
	} else {
		logger.Infof("bootstrap admin %q created", username)
	}
	return nil
}
