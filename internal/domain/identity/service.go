package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medminder/medminder/internal/platform/auth"
)

// Login failures the handler maps to 401 with a user-facing message. All
// other errors are treated as internal.
var (
	ErrNoAccount     = errors.New("no account found with this email")
	ErrWrongPassword = errors.New("incorrect password")
)

const minPasswordLength = 6

type Service struct {
	users  UserRepository
	issuer *auth.TokenIssuer
}

func NewService(users UserRepository, issuer *auth.TokenIssuer) *Service {
	return &Service{users: users, issuer: issuer}
}

// SignupInput carries the signup form fields.
type SignupInput struct {
	Email           string    `json:"email"`
	Password        string    `json:"password"`
	ConfirmPassword string    `json:"confirm_password"`
	Role            auth.Role `json:"role"`
}

// Signup registers a new account with the chosen role. The profile starts
// unassigned: a patient's caretaker linkage is set later by an assignment.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*UserProfile, error) {
	if in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, fmt.Errorf("all fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return nil, fmt.Errorf("passwords do not match")
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("invalid role: %s", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &UserProfile{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, fmt.Errorf("an account with this email already exists")
		}
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*UserProfile, string, error) {
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrNoAccount
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrWrongPassword
	}

	token, err := s.issuer.Issue(u.ID, u.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

// Resolve implements auth.ProfileResolver. A missing profile degrades the
// session instead of failing: the caller stays authenticated but carries a
// warning and no role. Transport failures propagate so the middleware can
// apply its own degraded fallback.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, email string) (*auth.Session, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &auth.Session{
				UserID:  userID,
				Email:   email,
				Warning: auth.WarningProfileMissing,
			}, nil
		}
		return nil, err
	}
	return u.Session(), nil
}
