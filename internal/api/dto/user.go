package dto

import (
	"github.com/auditbench/auditbench/internal/api/validation"
)

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Avatar *string `json:"avatar"`
}

func (r UpdateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil {
		if *r.Name == "" {
			errors["name"] = "Name cannot be empty"
		} else if len(*r.Name) > 100 {
			errors["name"] = "Name must be at most 100 characters"
		}
	}
	if r.Email != nil && !validation.IsValidEmail(*r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Avatar != nil && len(*r.Avatar) > 2048 {
		errors["avatar"] = "Avatar URL must be at most 2048 characters"
	}

	return errors
}

type AdminUpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (r AdminUpdateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Role != nil && *r.Role != "user" && *r.Role != "admin" {
		errors["role"] = "Role must be user or admin"
	}
	if r.Role == nil && r.IsActive == nil {
		errors["request"] = "Nothing to update"
	}

	return errors
}
