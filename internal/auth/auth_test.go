package auth

import (
	"testing"
	"time"
)

func newTestService(ttl time.Duration) *Service {
	return NewService("test-secret-key", "radiology", "scanner-room-4", ttl)
}

func TestLoginAndVerify_RoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)

	token, user, err := svc.Login("radiology", "scanner-room-4")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Fatal("Login returned empty token")
	}
	if user.Username != "radiology" || user.Role != "radiologist" {
		t.Errorf("user = %+v", user)
	}

	verified, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verified.Username != user.Username || verified.Role != user.Role {
		t.Errorf("verified user = %+v, want %+v", verified, user)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc := newTestService(time.Hour)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"Wrong password", "radiology", "wrong"},
		{"Wrong username", "someone-else", "scanner-room-4"},
		{"Both wrong", "someone-else", "wrong"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Login(tt.username, tt.password); err == nil {
				t.Error("Login accepted bad credentials")
			}
		})
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	svc := newTestService(time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"Garbage", "not-a-token"},
		{"Empty", ""},
		{"Unsigned header only", "eyJhbGciOiJub25lIn0."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Verify(tt.token); err == nil {
				t.Error("Verify accepted a bad token")
			}
		})
	}
}

func TestVerify_RejectsForeignSignature(t *testing.T) {
	svc := newTestService(time.Hour)
	other := NewService("different-secret", "radiology", "scanner-room-4", time.Hour)

	token, _, err := other.Login("radiology", "scanner-room-4")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := svc.Verify(token); err == nil {
		t.Error("Verify accepted a token signed with another secret")
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, _, err := svc.Login("radiology", "scanner-room-4")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := svc.Verify(token); err == nil {
		t.Error("Verify accepted an expired token")
	}
}
