package domain

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

// fillSource returns n bytes of an incrementing fill value per call, so
// consecutive tokens are deterministic but distinct.
type fillSource struct {
	next byte
}

func (s *fillSource) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = s.next
	}
	s.next++
	return buf, nil
}

type brokenSource struct{}

func (brokenSource) Bytes(n int) ([]byte, error) {
	return nil, errors.New("entropy pool unavailable")
}

func TestNewDevice(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)

	if d.ID != "d1" || d.UserID != "u1" || d.Name != "laptop" || d.DeviceType != 6 {
		t.Fatalf("device = %+v", d)
	}
	if d.RefreshToken != "" {
		t.Fatal("a new device must not carry a refresh token")
	}
	if d.PushToken != nil || d.TwoFactorRemember != nil {
		t.Fatal("a new device must not carry push or remember tokens")
	}
	if d.CreatedAt.IsZero() || !d.CreatedAt.Equal(d.UpdatedAt) {
		t.Fatalf("timestamps = %v / %v", d.CreatedAt, d.UpdatedAt)
	}
}

func TestEnsureRefreshTokenGeneratesOnce(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)
	src := &fillSource{}

	first, err := d.EnsureRefreshToken(src)
	if err != nil {
		t.Fatalf("EnsureRefreshToken: %v", err)
	}
	raw, err := base64.URLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("refresh token is not URL-safe base64: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("raw token length = %d, want 64", len(raw))
	}

	second, err := d.EnsureRefreshToken(src)
	if err != nil {
		t.Fatalf("second EnsureRefreshToken: %v", err)
	}
	if second != first {
		t.Fatal("refresh token was regenerated")
	}
}

func TestEnsureRefreshTokenBumpsUpdatedAt(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)
	d.UpdatedAt = d.UpdatedAt.Add(-time.Minute)
	before := d.UpdatedAt

	if _, err := d.EnsureRefreshToken(&fillSource{}); err != nil {
		t.Fatalf("EnsureRefreshToken: %v", err)
	}
	if !d.UpdatedAt.After(before) {
		t.Fatal("UpdatedAt was not bumped")
	}

	// Even a no-op reuse marks the device as active.
	d.UpdatedAt = d.UpdatedAt.Add(-time.Minute)
	before = d.UpdatedAt
	if _, err := d.EnsureRefreshToken(&fillSource{}); err != nil {
		t.Fatalf("EnsureRefreshToken: %v", err)
	}
	if !d.UpdatedAt.After(before) {
		t.Fatal("UpdatedAt was not bumped on reuse")
	}
}

func TestEnsureRefreshTokenEntropyFailure(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)

	if _, err := d.EnsureRefreshToken(brokenSource{}); err == nil {
		t.Fatal("expected an error")
	}
	if d.RefreshToken != "" {
		t.Fatal("a token was set despite the failure")
	}
}

func TestRefreshTwoFactorRemember(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)
	src := &fillSource{}

	first, err := d.RefreshTwoFactorRemember(src)
	if err != nil {
		t.Fatalf("RefreshTwoFactorRemember: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("remember token is not standard base64: %v", err)
	}
	if len(raw) != 180 {
		t.Fatalf("raw token length = %d, want 180", len(raw))
	}
	if d.TwoFactorRemember == nil || *d.TwoFactorRemember != first {
		t.Fatal("remember token not stored on the device")
	}

	second, err := d.RefreshTwoFactorRemember(src)
	if err != nil {
		t.Fatalf("second RefreshTwoFactorRemember: %v", err)
	}
	if second == first {
		t.Fatal("remember token must rotate on every call")
	}
	if *d.TwoFactorRemember != second {
		t.Fatal("device does not hold the latest remember token")
	}
}

func TestRefreshTwoFactorRememberEntropyFailure(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)
	if _, err := d.RefreshTwoFactorRemember(&fillSource{}); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	kept := *d.TwoFactorRemember

	if _, err := d.RefreshTwoFactorRemember(brokenSource{}); err == nil {
		t.Fatal("expected an error")
	}
	if d.TwoFactorRemember == nil || *d.TwoFactorRemember != kept {
		t.Fatal("existing remember token was disturbed by the failure")
	}
}

func TestDeleteTwoFactorRemember(t *testing.T) {
	d := NewDevice("d1", "u1", "laptop", 6)
	if _, err := d.RefreshTwoFactorRemember(&fillSource{}); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	d.DeleteTwoFactorRemember()
	if d.TwoFactorRemember != nil {
		t.Fatal("remember token was not cleared")
	}
}
