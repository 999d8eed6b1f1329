// Package gate holds the authorization predicates consulted by every
// protected handler. It has no state; the current user is always passed in.
package gate

import (
	apperrors "fileportal/internal/errors"
	"fileportal/internal/model"
)

// Check is a single authorization predicate.
type Check func(user *model.User) error

// RequireLoggedIn fails with ErrUnauthenticated when there is no current user.
func RequireLoggedIn(user *model.User) error {
	if user == nil {
		return apperrors.ErrUnauthenticated
	}
	return nil
}

// RequireApproved fails with ErrForbidden unless the account is approved.
func RequireApproved(user *model.User) error {
	if err := RequireLoggedIn(user); err != nil {
		return err
	}
	if !user.IsApproved() {
		return apperrors.ErrForbidden
	}
	return nil
}

// RequireAdmin fails with ErrForbidden unless the user is an administrator.
func RequireAdmin(user *model.User) error {
	if err := RequireLoggedIn(user); err != nil {
		return err
	}
	if !user.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return nil
}

// Authorize runs the login check followed by checks in order and returns the
// first failure.
func Authorize(user *model.User, checks ...Check) error {
	if err := RequireLoggedIn(user); err != nil {
		return err
	}
	for _, check := range checks {
		if err := check(user); err != nil {
			return err
		}
	}
	return nil
}

// Approved is the check list for pages any approved user may see.
func Approved() []Check {
	return []Check{RequireApproved}
}

// Admin is the check list for admin-only actions: approved, then admin.
func Admin() []Check {
	return []Check{RequireApproved, RequireAdmin}
}
