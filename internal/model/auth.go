package model

// LoginRequest はPOST /api/auth/loginのリクエストボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest はPOST /api/auth/registerのリクエストボディ。
// preferencesは省略可能で、そのままuser-svcに中継される。
type RegisterRequest struct {
	Email       string           `json:"email"`
	Password    string           `json:"password"`
	FirstName   string           `json:"firstName"`
	LastName    string           `json:"lastName"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// RefreshRequest はPOST /api/auth/refreshのリクエストボディ。
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse は認証成功時のレスポンス。
// expiresInはアクセストークンの有効期間（秒）。
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
	User         *User  `json:"user"`
}

// LogoutResponse はログアウト成功時のレスポンス。
type LogoutResponse struct {
	Message string `json:"message"`
}
