package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"learninghelper/internal/util"
	"learninghelper/pkg/auth"
	"learninghelper/pkg/domain"
)

const avatarURLExpiry = time.Hour

// Register creates a new account.
func (a *App) Register(username, name, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || name == "" || email == "" || password == "" {
		return domain.User{}, ErrRegistrationFieldsRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	taken, err := a.store.HasUsername(username)
	if err != nil {
		return domain.User{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.User{}, ErrUsernameTaken
	}
	taken, err = a.store.HasEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, ErrEmailTaken
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login validates credentials and issues a session token. rememberMe
// extends the session lifetime.
func (a *App) Login(username, password string, rememberMe bool) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	ttl := a.sessionTTL
	if rememberMe {
		ttl = a.rememberTTL
	}
	token, err := a.sessions.NewSession(user.ID, ttl)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout invalidates the session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// ForgotPassword emails a reset link for the account. Unknown emails are
// logged but reported as success so responses cannot enumerate accounts.
func (a *App) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrEmailRequired
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		slog.Warn("security_event", "event", "password_reset_request", "outcome", "unknown_email")
		return nil
	}
	token, err := a.sessions.NewResetToken(user.ID, a.resetTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", a.resetBaseURL, token)
	body := fmt.Sprintf(
		"Hi %s,\n\nA password reset was requested for your account. Open the link below within %d minutes to choose a new password:\n\n%s\n\nIf you did not request this, you can ignore this mail.\n",
		user.Name, int(a.resetTTL.Minutes()), link,
	)
	if err := a.mail.Send(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ValidResetToken reports whether the reset token is usable, without
// consuming it.
func (a *App) ValidResetToken(token string) bool {
	userID, err := a.sessions.UserIDFromResetToken(token)
	if err != nil {
		return false
	}
	_, ok, err := a.store.GetUserByID(userID)
	return err == nil && ok
}

// ResetPassword sets a new password using a reset token. The token is
// consumed on success.
func (a *App) ResetPassword(token, newPassword string) error {
	userID, err := a.sessions.UserIDFromResetToken(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrInvalidResetToken
	}
	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := a.sessions.DeleteSession(token); err != nil {
		slog.Warn("consume reset token", "error", err)
	}
	return nil
}

// Profile returns the user with a fresh avatar URL when one is stored.
func (a *App) Profile(ctx context.Context, user domain.User) (domain.User, error) {
	if user.AvatarKey == "" {
		return user, nil
	}
	url, err := a.objects.PresignGet(ctx, user.AvatarKey, avatarURLExpiry)
	if err != nil {
		return domain.User{}, fmt.Errorf("presign avatar: %w", err)
	}
	user.AvatarURL = url
	return user, nil
}

// UpdateProfile changes display name and email.
func (a *App) UpdateProfile(user domain.User, name, email string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name != "" {
		user.Name = name
	}
	if email != "" && email != user.Email {
		existing, ok, err := a.store.GetUserByEmail(email)
		if err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		}
		if ok && existing.ID != user.ID {
			return domain.User{}, ErrEmailTaken
		}
		user.Email = email
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// UploadAvatar stores the avatar object and remembers its key.
func (a *App) UploadAvatar(ctx context.Context, user domain.User, filename string, r io.Reader, size int64, contentType string) (domain.User, error) {
	key := fmt.Sprintf("avatars/%s%s", user.ID, strings.ToLower(path.Ext(filename)))
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.User{}, fmt.Errorf("store avatar: %w", err)
	}
	if user.AvatarKey != "" && user.AvatarKey != key {
		_ = a.objects.Delete(ctx, user.AvatarKey)
	}
	user.AvatarKey = key
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return a.Profile(ctx, user)
}
