package identity

import (
	"context"
	"testing"
	"time"

	"deskpanel/internal/auth"
	"deskpanel/internal/model"
)

func contextWithClaims(t *testing.T) context.Context {
	t.Helper()
	token, err := auth.NewAccessToken("secret", "issuer", time.Minute, auth.Claims{
		UserID:   "user-1",
		Name:     "Ada Teacher",
		UserType: "teacher",
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	claims, err := auth.ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	return auth.NewContext(context.Background(), claims)
}

func TestProfileFromClaims(t *testing.T) {
	provider := NewClaimsProvider(nil)
	ctx := contextWithClaims(t)

	profile, err := provider.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile == nil || profile.Name != "Ada Teacher" || profile.Role != model.RoleTeacher {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestProfileWithoutClaimsIsNil(t *testing.T) {
	provider := NewClaimsProvider(nil)
	profile, err := provider.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile for unauthenticated context")
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	provider := NewClaimsProvider(nil)
	ctx := contextWithClaims(t)

	if err := provider.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	profile, err := provider.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected revoked session to be unauthenticated")
	}
}

func TestSignOutWithoutSessionErrors(t *testing.T) {
	provider := NewClaimsProvider(nil)
	if err := provider.SignOut(context.Background()); err == nil {
		t.Fatalf("expected sign-out without a session to error")
	}
}

func TestMemoryRevokerExpiry(t *testing.T) {
	revoker := NewMemoryRevoker()
	current := time.Now().UTC()
	revoker.now = func() time.Time { return current }

	if err := revoker.Revoke(context.Background(), "jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := revoker.IsRevoked(context.Background(), "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, got %v err %v", revoked, err)
	}

	current = current.Add(2 * time.Minute)
	revoked, err = revoker.IsRevoked(context.Background(), "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected revocation to lapse with the token, got %v err %v", revoked, err)
	}
}
