package dto

// TokenResponse matches the connect/token wire shape the vault clients
// expect (snake_case, token_type always "Bearer").
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	UserID        string `json:"userId,omitempty"`
	DeviceID      string `json:"deviceId,omitempty"`
	Email         string `json:"email,omitempty"`
	SecurityStamp string `json:"-"`
}
