package service

import (
	"context"

	"vaultauth/internal/domain"
	"vaultauth/internal/dto"
)

type TokenService interface {
	// IssueForDevice is the caller-facing issuance contract: given a
	// resolved user, one of their devices and their organization
	// memberships, it mints an access token, guarantees the device holds a
	// refresh token, persists the device and returns all three parts.
	IssueForDevice(ctx context.Context, user *domain.User, device *domain.Device, orgs []domain.UserOrganization) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken, ip, ua string) (*dto.TokenResponse, error)
	VerifyAccess(ctx context.Context, req dto.VerifyRequest) (dto.VerifyResponse, error)
}
