package services

import (
	"errors"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/internal/utils"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

// UserService is the admin-side user directory. Callers are gated by the
// admin middleware; these methods do not re-check the caller's role.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Nickname *string `json:"nickname"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

func (s *UserService) List() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, response.NewDatabaseError("failed to list users")
	}
	return users, nil
}

func (s *UserService) Get(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUserNotFound("user not found")
		}
		return nil, response.NewDatabaseError("failed to load user")
	}
	return &user, nil
}

// Create adds a local account. LDAP accounts are created on first login, not
// here.
func (s *UserService) Create(req *CreateUserRequest) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return nil, response.NewDatabaseError("failed to check username")
	}
	if count > 0 {
		return nil, response.NewConflict("username already exists")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, response.NewInternal("failed to hash password")
	}

	role := req.Role
	if role == "" {
		role = "user"
	}

	user := models.User{
		Username: req.Username,
		Password: hashed,
		Email:    req.Email,
		Nickname: req.Nickname,
		Role:     role,
		AuthType: "local",
		IsActive: true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, response.NewDatabaseError("failed to create user")
	}
	return &user, nil
}

func (s *UserService) Update(id uint, req *UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Nickname != nil {
		updates["nickname"] = *req.Nickname
	}
	if req.Role != nil {
		if *req.Role != "admin" && *req.Role != "user" {
			return nil, response.NewValidation("role must be admin or user")
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, response.NewDatabaseError("failed to update user")
	}
	return user, nil
}

// ResetPassword sets a new password on a local account.
func (s *UserService) ResetPassword(id uint, req *ResetPasswordRequest) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}
	if user.AuthType != "local" {
		return response.NewValidation("cannot reset password for LDAP users")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return response.NewInternal("failed to hash password")
	}
	return s.db.Model(user).Update("password", hashed).Error
}

// Delete deactivates and soft-deletes an account. The last active admin
// cannot be deleted.
func (s *UserService) Delete(id uint) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}

	if user.Role == "admin" {
		var admins int64
		if err := s.db.Model(&models.User{}).
			Where("role = ? AND is_active = ? AND id != ?", "admin", true, id).
			Count(&admins).Error; err != nil {
			return response.NewDatabaseError("failed to count admins")
		}
		if admins == 0 {
			return response.NewValidation("cannot delete the last active admin")
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
}
