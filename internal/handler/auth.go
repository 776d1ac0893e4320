package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/auth"
	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/service"
)

type userService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	ActiveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Profile(ctx context.Context, userID uuid.UUID) (*service.Profile, error)
}

type tokenIssuer interface {
	Issue(userID uuid.UUID, email string) (*auth.TokenPair, error)
	ValidateRefresh(token string) (*auth.Claims, error)
}

type AuthHandler struct {
	users  userService
	tokens tokenIssuer
}

func NewAuthHandler(users userService, tokens tokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Currency string `json:"currency"`
}

func (r registerRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if len(r.Password) < 8 {
		errs = append(errs, FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if r.Currency != "" && !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be USD, EUR, or GBP"})
	}
	return errs
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	return errs
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type tokensDTO struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

func toTokensDTO(p *auth.TokenPair) tokensDTO {
	return tokensDTO{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(p.AccessExpiresIn.Seconds()),
		RefreshExpiresIn: int64(p.RefreshExpiresIn.Seconds()),
	}
}

type authResponse struct {
	Tokens tokensDTO  `json:"tokens"`
	User   userDTO    `json:"user"`
	Wallet *walletDTO `json:"wallet,omitempty"`
}

type profileResponse struct {
	User   userDTO   `json:"user"`
	Wallet walletDTO `json:"wallet"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	profile, err := h.users.Register(r.Context(), service.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Currency: domain.Currency(req.Currency),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("registration rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	tokens, err := h.tokens.Issue(profile.User.ID, profile.User.Email)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue tokens", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	wallet := toWalletDTO(profile.Wallet)
	RespondSuccess(w, http.StatusCreated, authResponse{
		Tokens: toTokensDTO(tokens),
		User:   toUserDTO(profile.User),
		Wallet: &wallet,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	tokens, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue tokens", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, authResponse{
		Tokens: toTokensDTO(tokens),
		User:   toUserDTO(user),
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	claims, err := h.tokens.ValidateRefresh(req.RefreshToken)
	if err != nil {
		RespondAppError(w, ErrInvalidToken, nil)
		return
	}

	user, err := h.users.ActiveUser(r.Context(), claims.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	tokens, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue tokens", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, authResponse{
		Tokens: toTokensDTO(tokens),
		User:   toUserDTO(user),
	})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, appErr := currentUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	profile, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to load profile", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, profileResponse{
		User:   toUserDTO(profile.User),
		Wallet: toWalletDTO(profile.Wallet),
	})
}
