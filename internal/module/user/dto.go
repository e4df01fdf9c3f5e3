package user

import "github.com/medilab/backend/internal/domain"

// CreateUserRequest represents the input for creating a new user. The
// password is forwarded to the auth store over the broker and never
// persisted by this module.
type CreateUserRequest struct {
	FirstName  string   `json:"first_name" binding:"required,min=1,max=100"`
	LastName   string   `json:"last_name" binding:"required,min=1,max=100"`
	Username   string   `json:"username" binding:"required,min=3,max=100"`
	Password   string   `json:"password" binding:"required,min=8,max=72"`
	Email      string   `json:"email" binding:"required,email"`
	HospitalID string   `json:"hospital_id" binding:"omitempty,max=50"`
	Gender     string   `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
	Roles      []string `json:"roles" binding:"required,min=1,dive,oneof=ADMIN TECHNICIAN SECRETARY"`
}

// toUser maps the request onto a new domain user.
func (r CreateUserRequest) toUser() *domain.User {
	return &domain.User{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Username:   r.Username,
		Email:      r.Email,
		HospitalID: r.HospitalID,
		Gender:     r.Gender,
		Roles:      r.Roles,
	}
}

// UpdateUserRequest represents a partial update; absent fields are left
// untouched.
type UpdateUserRequest struct {
	FirstName  *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Username   *string `json:"username" binding:"omitempty,min=3,max=100"`
	Email      *string `json:"email" binding:"omitempty,email"`
	HospitalID *string `json:"hospital_id" binding:"omitempty,max=50"`
	Gender     *string `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
}

// toUpdate maps the request onto a domain update.
func (r UpdateUserRequest) toUpdate() domain.UserUpdate {
	return domain.UserUpdate{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Username:   r.Username,
		Email:      r.Email,
		HospitalID: r.HospitalID,
		Gender:     r.Gender,
	}
}
