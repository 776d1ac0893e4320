package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

const minPasswordLen = 8

type userRepo interface {
	Create(ctx context.Context, h *uow.Handle, u *domain.User) error
	EmailExists(ctx context.Context, h *uow.Handle, email string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userWalletRepo interface {
	Create(ctx context.Context, h *uow.Handle, w *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
}

type UserService struct {
	units           *uow.Factory
	users           userRepo
	wallets         userWalletRepo
	defaultCurrency domain.Currency
	bcryptCost      int
}

func NewUserService(units *uow.Factory, users userRepo, wallets userWalletRepo, defaultCurrency domain.Currency) *UserService {
	return &UserService{
		units:           units,
		users:           users,
		wallets:         wallets,
		defaultCurrency: defaultCurrency,
		bcryptCost:      bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost, mainly so tests stay fast.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

type RegisterRequest struct {
	Email    string
	Name     string
	Password string
	Currency domain.Currency
}

func (r *RegisterRequest) normalize() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("email: %w", domain.ErrInvalidRequest)
	}
	if r.Name == "" {
		return fmt.Errorf("name: %w", domain.ErrInvalidRequest)
	}
	if len(r.Password) < minPasswordLen {
		return fmt.Errorf("password: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// Profile is a user together with their wallet.
type Profile struct {
	User   *domain.User
	Wallet *domain.Wallet
}

// Register creates a user and their wallet in one unit of work.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	log := logging.FromContext(ctx)

	if err := req.normalize(); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("Register: currency: %w", domain.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    user.ID,
		Balance:   decimal.Zero,
		Currency:  currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.units.New().Execute(ctx, func(ctx context.Context, h *uow.Handle) error {
		exists, err := s.users.EmailExists(ctx, h, user.Email)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrEmailTaken
		}
		if err := s.users.Create(ctx, h, user); err != nil {
			return err
		}
		return s.wallets.Create(ctx, h, wallet)
	})
	if err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	log.Info("user registered",
		"user_id", user.ID,
		"wallet_id", wallet.ID,
		"currency", currency,
	)

	return &Profile{User: user, Wallet: wallet}, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Authenticate: %w", domain.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("Authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("Authenticate: %w", domain.ErrInvalidCredentials)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("Authenticate: %w", domain.ErrUserInactive)
	}
	return user, nil
}

// ActiveUser loads a user and rejects deactivated accounts.
func (s *UserService) ActiveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ActiveUser: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("ActiveUser: %w", domain.ErrUserInactive)
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Profile: %w", err)
	}
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Profile: %w", err)
	}
	return &Profile{User: user, Wallet: wallet}, nil
}
