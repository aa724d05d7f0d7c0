package impl

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"vaultauth/internal/domain"
	"vaultauth/internal/dto"
)

func newTestTokenService(t *testing.T, mem *memoryStore) *TokenServiceImpl {
	t.Helper()
	key, err := deriveSigningKey([]byte("test master secret"))
	if err != nil {
		t.Fatalf("derive signing key: %v", err)
	}
	return &TokenServiceImpl{
		cfg: TokenConfig{
			Issuer:    "vaultauth",
			AccessTTL: 2 * time.Hour,
		},
		signingKey: key,
		store:      mem,
		rand:       &seqSource{},
	}
}

func seedUserAndDevice(mem *memoryStore) (*domain.User, *domain.Device) {
	user := &domain.User{
		ID:            "u1",
		Name:          "Alice",
		Email:         "alice@example.com",
		SecurityStamp: "s1",
	}
	device := domain.NewDevice("d1", "u1", "Alice's laptop", 6)
	mem.putUser(user)
	mem.putDevice(device)
	return user, device
}

func TestIssueForDeviceFirstIssuance(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)

	res, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("IssueForDevice: %v", err)
	}
	if res.RefreshToken == "" {
		t.Fatal("expected a refresh token to be generated")
	}
	raw, err := base64.URLEncoding.DecodeString(res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token is not URL-safe base64: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("refresh token raw length = %d, want 64", len(raw))
	}
	if res.TokenType != "Bearer" {
		t.Fatalf("token type = %q, want Bearer", res.TokenType)
	}
	if res.ExpiresIn != int64((2 * time.Hour).Seconds()) {
		t.Fatalf("expires_in = %d, want %d", res.ExpiresIn, int64((2*time.Hour).Seconds()))
	}

	claims, err := svc.ParseAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Device != "d1" || claims.SecurityStamp != "s1" {
		t.Fatalf("claims sub/device/sstamp = %q/%q/%q", claims.Subject, claims.Device, claims.SecurityStamp)
	}
	if len(claims.OrgOwner) != 0 || len(claims.OrgAdmin) != 0 || len(claims.OrgUser) != 0 {
		t.Fatalf("expected empty org lists, got %v/%v/%v", claims.OrgOwner, claims.OrgAdmin, claims.OrgUser)
	}

	saved, ok := mem.device("d1")
	if !ok {
		t.Fatal("device was not persisted")
	}
	if saved.RefreshToken != res.RefreshToken {
		t.Fatal("persisted refresh token differs from returned one")
	}
}

func TestIssueForDeviceReusesRefreshToken(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)

	first, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("first issuance: %v", err)
	}
	second, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("second issuance: %v", err)
	}
	if first.RefreshToken != second.RefreshToken {
		t.Fatal("refresh token was regenerated on re-issuance")
	}
}

func TestIssueForDeviceKeepsPersistedRefreshToken(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)

	// Another request already persisted a refresh token for this device;
	// our stale in-memory copy must not overwrite it.
	persisted, _ := mem.device("d1")
	persisted.RefreshToken = "already-issued"
	mem.putDevice(persisted)

	res, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("IssueForDevice: %v", err)
	}
	if res.RefreshToken != "already-issued" {
		t.Fatalf("refresh token = %q, want the persisted one", res.RefreshToken)
	}
}

func TestIssueForDeviceRandomnessFailureAborts(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	svc.rand = failingSource{}
	user, device := seedUserAndDevice(mem)

	if _, err := svc.IssueForDevice(context.Background(), user, device, nil); err == nil {
		t.Fatal("expected an error when entropy is unavailable")
	}
	saved, _ := mem.device("d1")
	if saved.RefreshToken != "" {
		t.Fatal("a token was persisted despite the randomness failure")
	}
}

func TestBuildLoginClaimsPartitionsMemberships(t *testing.T) {
	user := &domain.User{ID: "u1", SecurityStamp: "s1"}
	device := domain.NewDevice("d1", "u1", "laptop", 6)
	orgs := []domain.UserOrganization{
		{UserID: "u1", OrgID: "o1", Role: domain.OrgRoleOwner},
		{UserID: "u1", OrgID: "o2", Role: domain.OrgRoleUser},
		{UserID: "u1", OrgID: "o3", Role: domain.OrgRoleManager},
		{UserID: "u1", OrgID: "o4", Role: domain.OrgRoleOwner},
	}

	claims := BuildLoginClaims(device, user, orgs, time.Now(), time.Hour, "vaultauth")

	if len(claims.OrgOwner) != 2 || claims.OrgOwner[0] != "o1" || claims.OrgOwner[1] != "o4" {
		t.Fatalf("orgowner = %v, want [o1 o4] in input order", claims.OrgOwner)
	}
	if len(claims.OrgAdmin) != 0 {
		t.Fatalf("orgadmin = %v, want empty", claims.OrgAdmin)
	}
	if len(claims.OrgUser) != 1 || claims.OrgUser[0] != "o2" {
		t.Fatalf("orguser = %v, want [o2]", claims.OrgUser)
	}
	// Manager role is intentionally absent from every list.
	for _, list := range [][]string{claims.OrgOwner, claims.OrgAdmin, claims.OrgUser} {
		for _, id := range list {
			if id == "o3" {
				t.Fatal("manager membership leaked into a claim list")
			}
		}
	}
}

func TestBuildLoginClaimsValidityWindow(t *testing.T) {
	user := &domain.User{ID: "u1", SecurityStamp: "s1"}
	device := domain.NewDevice("d1", "u1", "laptop", 6)

	validity := 2 * time.Hour
	claims := BuildLoginClaims(device, user, nil, time.Now(), validity, "vaultauth")

	window := claims.ExpiresAt.Time.Sub(claims.NotBefore.Time)
	if window != validity {
		t.Fatalf("exp - nbf = %v, want %v", window, validity)
	}
}

func TestBuildLoginClaimsFixedFields(t *testing.T) {
	user := &domain.User{ID: "u1", Name: "Alice", Email: "alice@example.com", SecurityStamp: "s1"}
	device := domain.NewDevice("d1", "u1", "laptop", 6)

	claims := BuildLoginClaims(device, user, nil, time.Now(), time.Hour, "vaultauth")

	if !claims.Premium || !claims.EmailVerified {
		t.Fatal("premium and email_verified must be fixed true")
	}
	if len(claims.Scope) != 2 || claims.Scope[0] != "api" || claims.Scope[1] != "offline_access" {
		t.Fatalf("scope = %v", claims.Scope)
	}
	if len(claims.AMR) != 1 || claims.AMR[0] != "Application" {
		t.Fatalf("amr = %v", claims.AMR)
	}
	if claims.Issuer != "vaultauth" || claims.Subject != "u1" {
		t.Fatalf("iss/sub = %q/%q", claims.Issuer, claims.Subject)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, newMemoryStore())
	user := &domain.User{ID: "u1", Name: "Alice", Email: "alice@example.com", SecurityStamp: "s1"}
	device := domain.NewDevice("d1", "u1", "laptop", 6)
	orgs := []domain.UserOrganization{
		{UserID: "u1", OrgID: "o1", Role: domain.OrgRoleOwner},
		{UserID: "u1", OrgID: "o2", Role: domain.OrgRoleAdmin},
		{UserID: "u1", OrgID: "o3", Role: domain.OrgRoleUser},
	}
	in := BuildLoginClaims(device, user, orgs, time.Now(), time.Hour, "vaultauth")

	token, err := svc.SignAccess(in)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	out, err := svc.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}

	if out.Premium != in.Premium ||
		out.Name != in.Name ||
		out.Email != in.Email ||
		out.EmailVerified != in.EmailVerified ||
		out.SecurityStamp != in.SecurityStamp ||
		out.Device != in.Device ||
		out.Issuer != in.Issuer ||
		out.Subject != in.Subject {
		t.Fatalf("scalar claims did not round-trip: %+v vs %+v", out, in)
	}
	if !out.NotBefore.Time.Equal(in.NotBefore.Time) || !out.ExpiresAt.Time.Equal(in.ExpiresAt.Time) {
		t.Fatal("nbf/exp did not round-trip")
	}
	for name, pair := range map[string][2][]string{
		"orgowner": {out.OrgOwner, in.OrgOwner},
		"orgadmin": {out.OrgAdmin, in.OrgAdmin},
		"orguser":  {out.OrgUser, in.OrgUser},
		"scope":    {out.Scope, in.Scope},
		"amr":      {out.AMR, in.AMR},
	} {
		got, want := pair[0], pair[1]
		if len(got) != len(want) {
			t.Fatalf("%s length mismatch: %v vs %v", name, got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("%s[%d] = %q, want %q", name, i, got[i], want[i])
			}
		}
	}
}

func TestRefreshEmptyTokenRejected(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	// A registered device that has never issued tokens stores an empty
	// refresh token; an empty bearer value must not match it.
	seedUserAndDevice(mem)

	_, err := svc.Refresh(context.Background(), "", "192.0.2.4", "cli")
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	saved, _ := mem.device("d1")
	if saved.RefreshToken != "" {
		t.Fatal("a refresh token was minted for an unauthenticated caller")
	}
}

func TestRefreshUnknownTokenRejected(t *testing.T) {
	svc := newTestTokenService(t, newMemoryStore())

	_, err := svc.Refresh(context.Background(), "no-such-token", "192.0.2.4", "cli")
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshMintsNewAccessToken(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)
	mem.putOrgs("u1", []domain.UserOrganization{
		{UserID: "u1", OrgID: "o1", Role: domain.OrgRoleOwner},
		{UserID: "u1", OrgID: "o2", Role: domain.OrgRoleUser},
	})

	issued, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("IssueForDevice: %v", err)
	}

	res, err := svc.Refresh(context.Background(), issued.RefreshToken, "192.0.2.4:1234", "cli")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.RefreshToken != issued.RefreshToken {
		t.Fatal("refresh token must not rotate on refresh")
	}

	claims, err := svc.ParseAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Device != "d1" {
		t.Fatalf("claims sub/device = %q/%q", claims.Subject, claims.Device)
	}
	if len(claims.OrgOwner) != 1 || claims.OrgOwner[0] != "o1" {
		t.Fatalf("orgowner = %v, want [o1]", claims.OrgOwner)
	}
	if len(claims.OrgUser) != 1 || claims.OrgUser[0] != "o2" {
		t.Fatalf("orguser = %v, want [o2]", claims.OrgUser)
	}
}

func TestRefreshBumpsUpdatedAt(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)

	issued, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("IssueForDevice: %v", err)
	}
	before, _ := mem.device("d1")

	time.Sleep(5 * time.Millisecond)
	if _, err := svc.Refresh(context.Background(), issued.RefreshToken, "", ""); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	after, _ := mem.device("d1")
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatal("refresh did not bump UpdatedAt")
	}
}

func TestVerifyAccessRejectsStaleSecurityStamp(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)

	res, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("IssueForDevice: %v", err)
	}

	// Credential change rotates the stamp; everything minted before must die.
	user.SecurityStamp = "s2"
	mem.putUser(user)

	_, err = svc.VerifyAccess(context.Background(), dto.VerifyRequest{Token: res.AccessToken})
	if !errors.Is(err, domain.ErrStaleToken) {
		t.Fatalf("err = %v, want ErrStaleToken", err)
	}
}

func TestVerifyAccessAcceptsFreshToken(t *testing.T) {
	mem := newMemoryStore()
	svc := newTestTokenService(t, mem)
	user, device := seedUserAndDevice(mem)

	res, err := svc.IssueForDevice(context.Background(), user, device, nil)
	if err != nil {
		t.Fatalf("IssueForDevice: %v", err)
	}

	v, err := svc.VerifyAccess(context.Background(), dto.VerifyRequest{Token: res.AccessToken})
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if !v.Valid || v.UserID != "u1" || v.DeviceID != "d1" {
		t.Fatalf("verify response = %+v", v)
	}
}
