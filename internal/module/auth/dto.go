package auth

// LoginRequest is the payload for username and password authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// ChangePasswordRequest is the payload for an authenticated password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

// ResetPasswordRequest is the payload for initiating a password reset.
type ResetPasswordRequest struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
}

// ConfirmResetRequest is the payload for consuming a reset token.
type ConfirmResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}
