package dto

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries only the username; no token or cookie is issued.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}
