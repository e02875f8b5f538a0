package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/repository"
)

const (
	passwordHashCost  = 12
	minUsernameLength = 3
	minPasswordLength = 6
)

// HashPassword hashes a password with bcrypt (also used by the seeder).
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// TokenIssuer signs a session token for an authenticated user.
type TokenIssuer interface {
	Issue(userID, username string, role domain.Role) (token string, expiresAt time.Time, err error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// Profile is the caller's own user record. The password hash is never
// exposed; HasPassword tells whether one is set.
type Profile struct {
	domain.User
	HasPassword bool             `json:"hasPassword"`
	Accounts    []domain.Account `json:"accounts"`
}

// RegisterInput is a credential sign-up.
type RegisterInput struct {
	Username string
	Password string
	Name     string
	Email    string
}

// ProfilePatch changes the non-nil profile fields.
type ProfilePatch struct {
	Name  *string
	Image *string
}

// LinkAccountInput links an external identity.
type LinkAccountInput struct {
	Provider          string
	ProviderAccountID string
	Type              string
}

// UserService handles credentials, profile and linked accounts.
//
// A user always keeps one way to sign in: the last linked account of a
// user without a password cannot be unlinked.
type UserService struct {
	repo   repository.Repository
	tokens TokenIssuer
	cost   int
	now    func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(repo repository.Repository, tokens TokenIssuer) *UserService {
	return &UserService{repo: repo, tokens: tokens, cost: passwordHashCost, now: utcNow}
}

func (s *UserService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", apperrors.ErrInternal(err)
	}
	return string(h), nil
}

func errInvalidCredentials() error {
	return apperrors.Unauthorized(apperrors.CodeInvalidCredentials, "Invalid username or password")
}

func errUsernameTaken() error {
	return apperrors.Conflict(apperrors.CodeUsernameTaken, "Username is already taken")
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength {
		return apperrors.ErrValidation("username", "username must be at least 3 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.ErrValidation("password", "password must be at least 6 characters")
	}
	return nil
}

// Authenticate checks a username and password and issues a session token.
// A user without a password cannot sign in with credentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errInvalidCredentials()
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("login failed: invalid credentials")
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if !user.HasPassword() {
		logger.Warn("login failed: no password set", zap.String("user_id", user.ID))
		return nil, errInvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Warn("login failed: invalid credentials", zap.String("user_id", user.ID))
		return nil, errInvalidCredentials()
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Register creates a FARMER with a username and password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &domain.User{
		ID:           newID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Username:     username,
		Role:         domain.RoleFarmer,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errUsernameTaken()
		}
		return nil, storeErr("create user", err)
	}
	return user, nil
}

func (s *UserService) self(ctx context.Context, repo repository.UserStore, p authz.Principal) (*domain.User, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	user, err := repo.GetUser(ctx, p.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized()
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// GetProfile returns the caller with linked accounts.
func (s *UserService) GetProfile(ctx context.Context, p authz.Principal) (*Profile, error) {
	user, err := s.self(ctx, s.repo, p)
	if err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListAccounts(ctx, user.ID)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return &Profile{User: *user, HasPassword: user.HasPassword(), Accounts: accounts}, nil
}

// UpdateProfile changes name and image.
func (s *UserService) UpdateProfile(ctx context.Context, p authz.Principal, patch ProfilePatch) (*domain.User, error) {
	return s.updateSelf(ctx, p, func(u *domain.User) error {
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Image != nil {
			u.Image = *patch.Image
		}
		return nil
	})
}

// SetUsername sets or changes the caller's username.
func (s *UserService) SetUsername(ctx context.Context, p authz.Principal, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	return s.updateSelf(ctx, p, func(u *domain.User) error {
		u.Username = username
		return nil
	})
}

// SetPassword sets or replaces the caller's password.
func (s *UserService) SetPassword(ctx context.Context, p authz.Principal, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	_, err = s.updateSelf(ctx, p, func(u *domain.User) error {
		u.PasswordHash = hash
		return nil
	})
	return err
}

func (s *UserService) updateSelf(ctx context.Context, p authz.Principal, mutate func(u *domain.User) error) (*domain.User, error) {
	var user *domain.User
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if user, err = s.self(ctx, tx, p); err != nil {
			return err
		}
		if err := mutate(user); err != nil {
			return err
		}
		user.UpdatedAt = s.now()
		if err := tx.UpdateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errUsernameTaken()
			}
			return storeErr("update user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LinkAccount attaches an external identity to the caller.
func (s *UserService) LinkAccount(ctx context.Context, p authz.Principal, in LinkAccountInput) (*domain.Account, error) {
	if strings.TrimSpace(in.Provider) == "" {
		return nil, apperrors.ErrValidation("provider", "provider is required")
	}
	if strings.TrimSpace(in.ProviderAccountID) == "" {
		return nil, apperrors.ErrValidation("providerAccountId", "providerAccountId is required")
	}
	user, err := s.self(ctx, s.repo, p)
	if err != nil {
		return nil, err
	}
	typ := in.Type
	if typ == "" {
		typ = "oauth"
	}
	acct := &domain.Account{
		ID:                newID(),
		UserID:            user.ID,
		Provider:          in.Provider,
		ProviderAccountID: in.ProviderAccountID,
		Type:              typ,
		CreatedAt:         s.now(),
	}
	if err := s.repo.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.CodeAccountLinked, "Account is already linked")
		}
		return nil, storeErr("create account", err)
	}
	return acct, nil
}

// UnlinkAccount removes every account of provider from the caller unless it
// would leave the caller without a login method.
func (s *UserService) UnlinkAccount(ctx context.Context, p authz.Principal, provider string) error {
	return s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := s.self(ctx, tx, p)
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx, user.ID)
		if err != nil {
			return storeErr("list accounts", err)
		}
		if !domain.CanUnlink(user.HasPassword(), accounts, provider) {
			return apperrors.Conflict(apperrors.CodeLastLoginMethod,
				"Cannot unlink the last login method. Set a password first.")
		}
		if _, err := tx.DeleteAccountsByProvider(ctx, user.ID, provider); err != nil {
			return storeErr("delete accounts", err)
		}
		return nil
	})
}
