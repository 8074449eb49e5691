package domain

import (
	"testing"
	"time"
)

func TestAccountConfirm(t *testing.T) {
	now := time.Now()
	account := Account{Status: AccountStatusPending}

	if account.IsConfirmed() {
		t.Fatal("pending account must not report confirmed")
	}
	if !account.Confirm(now) {
		t.Fatal("expected first confirmation to transition the account")
	}
	if !account.IsConfirmed() {
		t.Fatal("expected account to be active after confirmation")
	}
	if account.ConfirmedAt == nil || !account.ConfirmedAt.Equal(now) {
		t.Fatalf("expected confirmed_at %v, got %v", now, account.ConfirmedAt)
	}
	if account.Confirm(now.Add(time.Hour)) {
		t.Fatal("expected repeated confirmation to be a no-op")
	}
	if !account.ConfirmedAt.Equal(now) {
		t.Fatal("repeated confirmation must not move confirmed_at")
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"Jane.Doe@Example.COM":    "jane.doe@example.com",
		"  padded@example.com  ":  "padded@example.com",
		"already@example.com":     "already@example.com",
		"\tMiXeD@ExAmPlE.oRg\n":   "mixed@example.org",
	}
	for input, want := range cases {
		if got := NormalizeEmail(input); got != want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPurposeTokenLifecycle(t *testing.T) {
	now := time.Now()
	token := PurposeToken{ExpiresAt: now.Add(time.Hour)}

	if token.IsExpired(now) {
		t.Fatal("token must not be expired before its deadline")
	}
	if !token.IsExpired(now.Add(2 * time.Hour)) {
		t.Fatal("token must be expired past its deadline")
	}

	if !token.Consume(now) {
		t.Fatal("expected first consumption to succeed")
	}
	if token.UsedAt == nil || !token.UsedAt.Equal(now) {
		t.Fatalf("expected used_at %v, got %v", now, token.UsedAt)
	}
	if token.Consume(now.Add(time.Minute)) {
		t.Fatal("expected second consumption to fail")
	}
}

func TestRoles(t *testing.T) {
	for _, role := range SeededRoles() {
		if !KnownRole(role) {
			t.Fatalf("seeded role %q must be known", role)
		}
	}
	if KnownRole("Superuser") {
		t.Fatal("unexpected role must not be known")
	}

	held := []string{RoleUser, RoleModerator}
	if !HasRole(held, RoleModerator) {
		t.Fatal("expected held role to be found")
	}
	if HasRole(held, RoleAdmin) {
		t.Fatal("unheld role must not be found")
	}
	if HasRole(nil, RoleUser) {
		t.Fatal("empty role set holds nothing")
	}
}
