package impl

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"vaultauth/internal/domain"
	"vaultauth/internal/dto"
	"vaultauth/internal/netutil"
	"vaultauth/internal/observability/metrics"
	"vaultauth/internal/observability/middleware"
	"vaultauth/internal/random"
	"vaultauth/internal/service"
	"vaultauth/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var _ service.TokenService = (*TokenServiceImpl)(nil)

// ====== Config ======

type TokenConfig struct {
	Issuer       string        // e.g. "vaultauth"
	AccessTTL    time.Duration // e.g. 2 * time.Hour
	MasterSecret []byte        // HS256 keys are derived from this, never used raw
}

const signingKeyInfo = "vaultauth access token signing"

// deriveSigningKey stretches the configured master secret into a dedicated
// 32-byte HS256 key so the raw secret never signs anything itself.
func deriveSigningKey(master []byte) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptySigningSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(signingKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// ====== Claims ======

// LoginClaims is the full claim set embedded in every access token. The
// field set and JSON names are fixed by the client protocol; consumers
// validating tokens compare sstamp against the user's current security
// stamp to reject anything minted before the last credential change.
type LoginClaims struct {
	Premium       bool     `json:"premium"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	SecurityStamp string   `json:"sstamp"`
	Device        string   `json:"device"`
	OrgOwner      []string `json:"orgowner"`
	OrgAdmin      []string `json:"orgadmin"`
	OrgUser       []string `json:"orguser"`
	Scope         []string `json:"scope"`
	AMR           []string `json:"amr"`
	jwt.RegisteredClaims
}

// BuildLoginClaims assembles the claim set from explicit inputs only, so it
// is unit-testable without a store. Memberships are partitioned by role in
// input order; roles outside owner/admin/user never reach any list.
func BuildLoginClaims(
	device *domain.Device,
	user *domain.User,
	orgs []domain.UserOrganization,
	now time.Time,
	validity time.Duration,
	issuer string,
) LoginClaims {
	now = now.UTC().Truncate(time.Second)

	orgOwner := []string{}
	orgAdmin := []string{}
	orgUser := []string{}
	for _, m := range orgs {
		switch m.Role {
		case domain.OrgRoleOwner:
			orgOwner = append(orgOwner, m.OrgID)
		case domain.OrgRoleAdmin:
			orgAdmin = append(orgAdmin, m.OrgID)
		case domain.OrgRoleUser:
			orgUser = append(orgUser, m.OrgID)
		}
	}

	return LoginClaims{
		Premium:       true,
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: true,
		SecurityStamp: user.SecurityStamp,
		Device:        device.ID,
		OrgOwner:      orgOwner,
		OrgAdmin:      orgAdmin,
		OrgUser:       orgUser,
		Scope:         []string{"api", "offline_access"},
		AMR:           []string{"Application"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
}

// ====== Service ======

type TokenServiceImpl struct {
	cfg        TokenConfig
	signingKey []byte
	store      dataStore
	rand       random.Source
}

func NewTokenServiceHS256(cfg TokenConfig, st *store.Store, src random.Source) (*TokenServiceImpl, error) {
	key, err := deriveSigningKey(cfg.MasterSecret)
	if err != nil {
		return nil, err
	}
	return &TokenServiceImpl{
		cfg:        cfg,
		signingKey: key,
		store:      gormStoreAdapter{store: st},
		rand:       src,
	}, nil
}

// IssueForDevice guarantees the device holds a refresh token, persists it,
// and returns a signed access token together with that refresh token. The
// refresh token is minted at most once per device; re-issuing only refreshes
// the access token and the device's UpdatedAt.
func (t *TokenServiceImpl) IssueForDevice(
	ctx context.Context,
	user *domain.User,
	device *domain.Device,
	orgs []domain.UserOrganization,
) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("login", result).Inc()
	}()

	if err := t.store.WithTx(ctx, func(tx storeTx) error {
		return t.ensureAndSave(ctx, tx, device)
	}); err != nil {
		result = "failure"
		return nil, err
	}

	access, err := t.SignAccess(BuildLoginClaims(device, user, orgs, time.Now(), t.cfg.AccessTTL, t.cfg.Issuer))
	if err != nil {
		result = "failure"
		return nil, err
	}

	reqID := middleware.RequestIDFromContext(ctx)
	traceID := middleware.TraceIDFromContext(ctx)
	slog.Info("issued tokens", "device_id", device.ID, "user_id", user.ID, "request_id", reqID, "trace_id", traceID)

	return t.response(access, device.RefreshToken), nil
}

// Refresh resolves "which device is refreshing" from the opaque bearer
// refresh token alone and mints a fresh access token for it. The refresh
// token itself is never rotated here.
func (t *TokenServiceImpl) Refresh(ctx context.Context, refreshToken, ip, ua string) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", result).Inc()
	}()
	// Freshly registered devices persist with an empty refresh token, so an
	// empty bearer value must never reach the lookup.
	if refreshToken == "" {
		result = "failure"
		return nil, domain.ErrInvalidToken
	}
	ip = normalizeIP(ip)
	ua = netutil.TruncateUserAgent(ua)

	var (
		device *domain.Device
		user   *domain.User
		orgs   []domain.UserOrganization
	)
	err := t.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByRefreshTokenForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidToken
			}
			return err
		}
		usr, err := tx.Users().GetByID(ctx, dev.UserID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidToken
			}
			return err
		}
		memberships, err := tx.Organizations().ListByUser(ctx, dev.UserID)
		if err != nil {
			return err
		}
		if err := t.ensureAndSave(ctx, tx, dev); err != nil {
			return err
		}
		device, user, orgs = dev, usr, memberships
		return nil
	})
	if err != nil {
		result = "failure"
		return nil, err
	}

	access, err := t.SignAccess(BuildLoginClaims(device, user, orgs, time.Now(), t.cfg.AccessTTL, t.cfg.Issuer))
	if err != nil {
		result = "failure"
		return nil, err
	}

	reqID := middleware.RequestIDFromContext(ctx)
	traceID := middleware.TraceIDFromContext(ctx)
	slog.Info("refreshed tokens", "device_id", device.ID, "user_id", user.ID, "ip", ip, "user_agent", ua, "request_id", reqID, "trace_id", traceID)

	return t.response(access, device.RefreshToken), nil
}

// VerifyAccess parses and validates an access token, then rejects it if the
// user's security stamp has moved since the token was minted.
func (t *TokenServiceImpl) VerifyAccess(ctx context.Context, req dto.VerifyRequest) (dto.VerifyResponse, error) {
	claims, err := t.ParseAccess(req.Token)
	if err != nil {
		return dto.VerifyResponse{Valid: false}, domain.ErrInvalidToken
	}

	var user *domain.User
	err = t.store.WithTx(ctx, func(tx storeTx) error {
		usr, err := tx.Users().GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		user = usr
		return nil
	})
	if err != nil {
		return dto.VerifyResponse{Valid: false}, err
	}
	if user.SecurityStamp != claims.SecurityStamp {
		return dto.VerifyResponse{Valid: false}, domain.ErrStaleToken
	}

	return dto.VerifyResponse{
		Valid:         true,
		UserID:        claims.Subject,
		DeviceID:      claims.Device,
		Email:         claims.Email,
		SecurityStamp: claims.SecurityStamp,
	}, nil
}

// ====== Helpers ======

// ensureAndSave performs the read-check-generate-write for the refresh
// token under the caller's transaction. When the device already has a
// persisted row, the row is locked and its refresh token wins, so two
// near-simultaneous first issuances cannot persist different tokens.
func (t *TokenServiceImpl) ensureAndSave(ctx context.Context, tx storeTx, device *domain.Device) error {
	current, err := tx.Devices().GetByIDForUpdate(ctx, device.ID)
	switch {
	case err == nil:
		if current.RefreshToken != "" {
			device.RefreshToken = current.RefreshToken
		}
	case errors.Is(err, store.ErrRecordNotFound):
		// First save of a freshly registered device.
	default:
		return err
	}

	if _, err := device.EnsureRefreshToken(t.rand); err != nil {
		return err
	}
	return tx.Devices().Save(ctx, device)
}

// SignAccess encodes the claim set into a signed token string.
func (t *TokenServiceImpl) SignAccess(claims LoginClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
}

// ParseAccess is the decode half of the issuer contract: a freshly signed
// claim set round-trips field for field.
func (t *TokenServiceImpl) ParseAccess(tokenStr string) (*LoginClaims, error) {
	claims := &LoginClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Issuer != t.cfg.Issuer {
		return nil, errors.New("bad issuer")
	}
	return claims, nil
}

func (t *TokenServiceImpl) response(access, refresh string) *dto.TokenResponse {
	return &dto.TokenResponse{
		AccessToken:  access,
		ExpiresIn:    int64(t.cfg.AccessTTL.Seconds()),
		TokenType:    "Bearer",
		RefreshToken: refresh,
	}
}

func normalizeIP(ip string) string {
	if normalized, ok := netutil.NormalizeIP(ip); ok {
		return normalized
	}
	return strings.TrimSpace(ip)
}
