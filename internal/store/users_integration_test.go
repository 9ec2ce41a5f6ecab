package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestLinkGoogleIdentityDropsUnverifiedPassword(t *testing.T) {
	s, ctx := openTestStore(t)
	err := s.CreateUser(ctx, User{ID: "usr_squat", DisplayName: "Squatter", Email: "owner@example.com", PasswordHash: "$2a$10$squatter"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreatePasswordReset(ctx, "rst_pending", "usr_squat", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreatePasswordReset() error = %v", err)
	}

	if err := s.LinkGoogleIdentity(ctx, "usr_squat", "g-owner", "", true); err != nil {
		t.Fatalf("LinkGoogleIdentity() error = %v", err)
	}

	user, err := s.GetUserByID(ctx, "usr_squat")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatalf("password hash survived the link: %q", user.PasswordHash)
	}
	if !user.IsEmailVerified || user.GoogleSub != "g-owner" {
		t.Fatalf("unexpected user after link: %+v", user)
	}
	if _, err := s.GetPasswordReset(ctx, "rst_pending"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("pending reset survived the link: %v", err)
	}
}

func TestLinkGoogleIdentityKeepsVerifiedPassword(t *testing.T) {
	s, ctx := openTestStore(t)
	err := s.CreateUser(ctx, User{ID: "usr_1", DisplayName: "Avery", Email: "avery@example.com", PasswordHash: "$2a$10$avery", IsEmailVerified: true})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.LinkGoogleIdentity(ctx, "usr_1", "g-avery", "", false); err != nil {
		t.Fatalf("LinkGoogleIdentity() error = %v", err)
	}
	user, err := s.GetUserByID(ctx, "usr_1")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.PasswordHash != "$2a$10$avery" {
		t.Fatalf("verified password was dropped")
	}
}
