package service

import (
	"context"
	"os"
	"regexp"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/repository"
	"jobtrack/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department" binding:"required"`
}

type UpdateUserRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email" binding:"omitempty,email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Active     *bool  `json:"active"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse returns User data without exposing the password hash
type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
}

type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,4}$`)

func mapUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID.String(),
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
		Active:     user.Active,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, apperror.Validationf("invalid role: must be user, admin, or super-admin")
	}
	if !emailRegex.MatchString(req.Email) {
		return nil, apperror.Validationf("invalid email format")
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperror.Conflictf("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperror.Conflictf("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Validationf("failed to hash password")
	}

	user := &model.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   string(hashedPassword),
		Role:       req.Role,
		Department: req.Department,
		Active:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return mapUserResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.Unauthorizedf("invalid email or password")
	}
	if !user.Active {
		return nil, apperror.Unauthorizedf("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthorizedf("invalid email or password")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, apperror.Validationf("failed to generate token")
	}
	return &TokenResponse{Token: tokenString}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid user id %q", id)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, apperror.NotFoundf("user %s not found", id)
		}
		return nil, err
	}
	return mapUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, *mapUserResponse(&users[i]))
	}
	return out, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid user id %q", id)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, apperror.NotFoundf("user %s not found", id)
		}
		return nil, err
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Email != "" {
		if !emailRegex.MatchString(req.Email) {
			return nil, apperror.Validationf("invalid email format")
		}
		user.Email = req.Email
	}
	if req.Role != "" {
		if !model.ValidRole(req.Role) {
			return nil, apperror.Validationf("invalid role")
		}
		user.Role = req.Role
	}
	if req.Department != "" {
		user.Department = req.Department
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return mapUserResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperror.Validationf("invalid user id %q", id)
	}
	return s.repo.Delete(ctx, userID)
}
