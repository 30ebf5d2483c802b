package httpdto

// RefreshRequest is used for POST /v1/auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is returned after a successful token refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LogoutRequest is used for POST /v1/auth/logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
