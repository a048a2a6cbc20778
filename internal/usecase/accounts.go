package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/auth"
	"github.com/example/edu-admin/internal/logging"
	"github.com/example/edu-admin/internal/repository"
)

// AccountRepository stores dashboard logins.
type AccountRepository interface {
	Create(ctx context.Context, account *repository.Account) error
	FindByLogin(ctx context.Context, role, login string) (*repository.Account, error)
	Exists(ctx context.Context, login string) (bool, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject, role, name string) (string, error)
}

// RegisterInput creates an administrator account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// StudentSignupInput creates a student account keyed by registration number.
type StudentSignupInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	RegNo    string `json:"reg_no" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=6"`
}

// Token is returned by every successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Profile describes the authenticated caller.
type Profile struct {
	Name  string `json:"name"`
	Login string `json:"login"`
	Role  string `json:"role"`
}

// AccountUseCase handles sign-up and sign-in for administrators and students.
type AccountUseCase struct {
	repo     AccountRepository
	issuer   TokenIssuer
	validate *validator.Validate
	logger   *zap.Logger
	hash     func(string) ([]byte, error)
}

func NewAccountUseCase(repo AccountRepository, issuer TokenIssuer, logger *zap.Logger) *AccountUseCase {
	return &AccountUseCase{
		repo:     repo,
		issuer:   issuer,
		validate: validator.New(),
		logger:   logger.Named("account_usecase"),
		hash:     auth.HashPassword,
	}
}

// Register creates an administrator. Duplicate emails yield repository.ErrConflict.
func (uc *AccountUseCase) Register(ctx context.Context, in RegisterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := uc.validate.Struct(in); err != nil {
		return validationError(err)
	}
	return uc.create(ctx, in.Name, in.Email, repository.RoleAdmin, in.Password)
}

// StudentSignup creates a student login.
func (uc *AccountUseCase) StudentSignup(ctx context.Context, in StudentSignupInput) error {
	in.RegNo = strings.TrimSpace(in.RegNo)
	if err := uc.validate.Struct(in); err != nil {
		return validationError(err)
	}
	return uc.create(ctx, in.Name, in.RegNo, repository.RoleStudent, in.Password)
}

// Login authenticates an administrator by email.
func (uc *AccountUseCase) Login(ctx context.Context, email, password string) (*Token, error) {
	return uc.login(ctx, repository.RoleAdmin, strings.ToLower(strings.TrimSpace(email)), password)
}

// StudentLogin authenticates a student by registration number.
func (uc *AccountUseCase) StudentLogin(ctx context.Context, regNo, password string) (*Token, error) {
	return uc.login(ctx, repository.RoleStudent, strings.TrimSpace(regNo), password)
}

// Profile loads the account behind an authenticated subject.
func (uc *AccountUseCase) Profile(ctx context.Context, role, login string) (*Profile, error) {
	account, err := uc.repo.FindByLogin(ctx, role, login)
	if err != nil {
		return nil, err
	}
	return &Profile{Name: account.Name, Login: account.Login, Role: account.Role}, nil
}

func (uc *AccountUseCase) create(ctx context.Context, name, login, role, password string) error {
	exists, err := uc.repo.Exists(ctx, login)
	if err != nil {
		return err
	}
	if exists {
		return repository.ErrConflict
	}

	hash, err := uc.hash(password)
	if err != nil {
		return logging.NewOperationError("usecase.hash_password", requestIDFrom(ctx), err)
	}
	account := &repository.Account{Name: strings.TrimSpace(name), Login: login, Role: role, PasswordHash: hash}
	if err := uc.repo.Create(ctx, account); err != nil {
		return err
	}
	logging.WithOperation(uc.logger, "usecase.create_account", requestIDFrom(ctx)).
		Info("account created", zap.String("login", login), zap.String("role", role))
	return nil
}

func (uc *AccountUseCase) login(ctx context.Context, role, login, password string) (*Token, error) {
	if login == "" || password == "" {
		return nil, invalidf("credentials are required")
	}

	account, err := uc.repo.FindByLogin(ctx, role, login)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.login", requestIDFrom(ctx)).
			Warn("stored password hash unreadable", zap.String("login", login), zap.Error(err))
		return nil, ErrUnauthorized
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	token, err := uc.issuer.Issue(account.Login, account.Role, account.Name)
	if err != nil {
		return nil, logging.NewOperationError("usecase.issue_token", requestIDFrom(ctx), err)
	}
	return &Token{AccessToken: token, TokenType: "bearer"}, nil
}
