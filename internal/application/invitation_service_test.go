package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/event-scheduler/internal/access"
	"github.com/example/event-scheduler/internal/claims"
)

type invitationFixture struct {
	svc      *InvitationService
	store    *memoryStore
	notifier *notifierStub
	signer   *claims.Signer
}

func newInvitationFixture() invitationFixture {
	store := newMemoryStore()
	store.addUser("root", "Root", "root@example.com", access.RoleSuperAdmin)
	store.addUser("admin", "Ada", "admin@example.com", access.RoleAdmin)
	store.addUser("alice", "Alice", "alice@example.com", access.RoleUser)

	notifier := &notifierStub{}
	signer := newTestSigner(fixedNow)
	svc := NewInvitationService(store, plainHasher{}, signer, notifier, sequentialIDs("user"), fixedNow, InvitationSettings{
		TTL:     24 * time.Hour,
		LinkURL: "http://localhost:3000/register",
	})
	return invitationFixture{svc: svc, store: store, notifier: notifier, signer: signer}
}

func TestInvitationService_Invite(t *testing.T) {
	t.Parallel()

	t.Run("creates placeholder and signs claim", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		result, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "root"},
			Email:     " New.Person@Example.com ",
			Role:      access.RoleAdmin,
		})
		if err != nil {
			t.Fatalf("Invite failed: %v", err)
		}

		if result.User.Name != "new.person" || result.User.Email != "new.person@example.com" {
			t.Fatalf("unexpected placeholder %#v", result.User)
		}
		if result.User.Activated() {
			t.Fatalf("expected placeholder without password")
		}
		if result.User.RoleName() != access.RoleAdmin {
			t.Fatalf("expected admin role, got %q", result.User.RoleName())
		}

		invite, err := f.signer.Verify(result.Token, claims.PurposeInvite)
		if err != nil {
			t.Fatalf("expected verifiable invite token: %v", err)
		}
		if invite.Subject != "new.person@example.com" || invite.Role != access.RoleAdmin {
			t.Fatalf("unexpected claims %#v", invite)
		}
		if !invite.ExpiresAt.Equal(testEpoch.Add(24 * time.Hour)) {
			t.Fatalf("expected 24h expiry, got %v", invite.ExpiresAt)
		}

		if !strings.HasPrefix(result.Link, "http://localhost:3000/register?token=") {
			t.Fatalf("unexpected link %q", result.Link)
		}
		if len(f.notifier.invites) != 1 || !strings.HasPrefix(f.notifier.invites[0], "new.person@example.com ") {
			t.Fatalf("expected invite email to be sent, got %v", f.notifier.invites)
		}
	})

	t.Run("existing email gets role replaced", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		result, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "root"},
			Email:     "alice@example.com",
			Role:      access.RoleAdmin,
		})
		if err != nil {
			t.Fatalf("Invite failed: %v", err)
		}
		if result.User.ID != "alice" || f.store.users["alice"].RoleName() != access.RoleAdmin {
			t.Fatalf("expected alice to be promoted, got %#v", result.User)
		}
		if len(f.store.users) != 3 {
			t.Fatalf("expected no new user, got %d users", len(f.store.users))
		}
	})

	t.Run("admin may only invite users", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		_, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "admin"},
			Email:     "boss@example.com",
			Role:      access.RoleAdmin,
		})
		if !errors.Is(err, ErrForbidden) || forbiddenReason(err) != "Admins can only invite normal users" {
			t.Fatalf("expected admin restriction, got %v", err)
		}

		if _, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "admin"},
			Email:     "worker@example.com",
			Role:      access.RoleUser,
		}); err != nil {
			t.Fatalf("expected admin to invite a user, got %v", err)
		}
	})

	t.Run("plain users cannot invite", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		_, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "alice"},
			Email:     "friend@example.com",
			Role:      access.RoleUser,
		})
		if forbiddenReason(err) != access.ReasonInsufficientPermissions {
			t.Fatalf("expected insufficient permissions, got %v", err)
		}
		if len(f.notifier.invites) != 0 {
			t.Fatalf("expected no invite email")
		}
	})

	t.Run("unknown role is a validation error", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		_, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "root"},
			Email:     "friend@example.com",
			Role:      "overlord",
		})
		if fieldError(err, "role") == "" {
			t.Fatalf("expected role validation error, got %v", err)
		}
	})

	t.Run("notifier failure does not fail invite", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		f.notifier.err = errors.New("smtp down")
		if _, err := f.svc.Invite(context.Background(), InviteParams{
			Principal: Principal{UserID: "root"},
			Email:     "friend@example.com",
			Role:      access.RoleUser,
		}); err != nil {
			t.Fatalf("expected invite to succeed, got %v", err)
		}
	})
}

func TestInvitationService_RegisterWithClaim(t *testing.T) {
	t.Parallel()

	invite := func(t *testing.T, f invitationFixture, email, role string) string {
		t.Helper()
		result, err := f.svc.Invite(context.Background(), InviteParams{Principal: Principal{UserID: "root"}, Email: email, Role: role})
		if err != nil {
			t.Fatalf("Invite failed: %v", err)
		}
		return result.Token
	}

	t.Run("activates placeholder with claimed role", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		token := invite(t, f, "newbie@example.com", access.RoleAdmin)

		user, err := f.svc.Register(context.Background(), RegisterParams{Name: "Newbie", Password: "pw", Mobile: "+15550100", Token: token})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if !user.Activated() || user.Name != "Newbie" || user.RoleName() != access.RoleAdmin || user.Mobile != "+15550100" {
			t.Fatalf("unexpected activated user %#v", user)
		}

		_, err = f.svc.Register(context.Background(), RegisterParams{Name: "Again", Password: "pw", Token: token})
		if !errors.Is(err, ErrAlreadyActivated) {
			t.Fatalf("expected ErrAlreadyActivated, got %v", err)
		}
	})

	t.Run("expired claim", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		token := invite(t, f, "late@example.com", access.RoleUser)

		later := NewInvitationService(f.store, plainHasher{}, newTestSigner(func() time.Time {
			return testEpoch.Add(25 * time.Hour)
		}), nil, nil, fixedNow, InvitationSettings{})
		_, err := later.Register(context.Background(), RegisterParams{Name: "Late", Password: "pw", Token: token})
		if !errors.Is(err, ErrExpiredClaim) {
			t.Fatalf("expected ErrExpiredClaim, got %v", err)
		}
	})

	t.Run("garbage claim", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		_, err := f.svc.Register(context.Background(), RegisterParams{Name: "X", Password: "pw", Token: "not-a-token"})
		if !errors.Is(err, ErrInvalidClaim) {
			t.Fatalf("expected ErrInvalidClaim, got %v", err)
		}
	})

	t.Run("session token is not an invitation", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		session, err := f.signer.Issue(claims.Claims{Subject: "alice@example.com", Purpose: claims.PurposeSession}, time.Hour)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := f.svc.Register(context.Background(), RegisterParams{Password: "pw", Token: session}); !errors.Is(err, ErrInvalidClaim) {
			t.Fatalf("expected ErrInvalidClaim, got %v", err)
		}
	})

	t.Run("claim without placeholder", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		orphan, err := f.signer.Issue(claims.Claims{Subject: "ghost@example.com", Role: access.RoleUser, Purpose: claims.PurposeInvite}, time.Hour)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := f.svc.Register(context.Background(), RegisterParams{Password: "pw", Token: orphan}); !errors.Is(err, ErrInvalidClaim) {
			t.Fatalf("expected ErrInvalidClaim, got %v", err)
		}
	})
}

func TestInvitationService_RegisterWithoutClaim(t *testing.T) {
	t.Parallel()

	t.Run("creates user role account", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		user, err := f.svc.Register(context.Background(), RegisterParams{Name: "Dave", Mobile: "+15550123", Password: "pw"})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if user.RoleName() != access.RoleUser || user.PasswordHash != "hashed:pw" || user.Email != "" {
			t.Fatalf("unexpected user %#v", user)
		}
	})

	t.Run("requires email or mobile", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		_, err := f.svc.Register(context.Background(), RegisterParams{Name: "Nobody", Password: "pw"})
		if fieldError(err, "email") == "" {
			t.Fatalf("expected contact validation error, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		_, err := f.svc.Register(context.Background(), RegisterParams{Name: "Alice 2", Email: "ALICE@example.com", Password: "pw"})
		var dup *DuplicateError
		if !errors.As(err, &dup) || dup.Message() != "Email already registered" {
			t.Fatalf("expected duplicate email, got %v", err)
		}
	})

	t.Run("duplicate mobile", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		if _, err := f.svc.Register(context.Background(), RegisterParams{Name: "First", Mobile: "+1555", Password: "pw"}); err != nil {
			t.Fatalf("first Register failed: %v", err)
		}
		_, err := f.svc.Register(context.Background(), RegisterParams{Name: "Second", Mobile: "+1555", Password: "pw"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestInvitationService_EnsureSuperAdmin(t *testing.T) {
	t.Parallel()

	t.Run("creates an activated super admin once", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		user, created, err := f.svc.EnsureSuperAdmin(context.Background(), " Owner@Example.com ", "pw")
		if err != nil {
			t.Fatalf("EnsureSuperAdmin failed: %v", err)
		}
		if !created || user.RoleName() != access.RoleSuperAdmin || !user.Activated() {
			t.Fatalf("unexpected bootstrap user %#v created=%v", user, created)
		}
		if user.Email != "owner@example.com" || user.Name != "owner" {
			t.Fatalf("expected normalized email and local part name, got %q %q", user.Email, user.Name)
		}

		again, created, err := f.svc.EnsureSuperAdmin(context.Background(), "owner@example.com", "other")
		if err != nil {
			t.Fatalf("second EnsureSuperAdmin failed: %v", err)
		}
		if created || again.ID != user.ID || again.PasswordHash != "hashed:pw" {
			t.Fatalf("expected existing account untouched, got %#v created=%v", again, created)
		}
	})

	t.Run("leaves an existing account's role alone", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		user, created, err := f.svc.EnsureSuperAdmin(context.Background(), "alice@example.com", "pw")
		if err != nil {
			t.Fatalf("EnsureSuperAdmin failed: %v", err)
		}
		if created || user.RoleName() != access.RoleUser {
			t.Fatalf("expected alice unchanged, got %#v", user)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		f := newInvitationFixture()
		if _, _, err := f.svc.EnsureSuperAdmin(context.Background(), "not-an-email", "pw"); fieldError(err, "email") == "" {
			t.Fatalf("expected email validation error, got %v", err)
		}
		if _, _, err := f.svc.EnsureSuperAdmin(context.Background(), "owner@example.com", ""); fieldError(err, "password") == "" {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})
}
