package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers unknown email, missing password hash and
	// password mismatch alike, so callers cannot enumerate users.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken covers missing, revoked and expired tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidExternalToken is returned when an identity provider rejects a
	// token, or cannot be reached within the call timeout.
	ErrInvalidExternalToken = errors.New("invalid external identity token")
	// ErrEmailTaken is returned on registration with an already used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound is the store's generic missing-row signal.
	ErrNotFound = errors.New("not found")
)

// Store is the credential store the service runs against.
type Store interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, user User) error
	SaveRefreshToken(ctx context.Context, rec RefreshTokenRecord) error

	// RotateRefreshToken atomically revokes the token identified by
	// presentedHash and persists its replacement. It returns the owning user,
	// or ErrInvalidRefreshToken when the presented token is unknown, revoked
	// or expired. Two concurrent calls with the same hash must not both
	// succeed.
	RotateRefreshToken(ctx context.Context, presentedHash string, replacement RefreshTokenRecord) (User, error)

	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	DeleteTokensBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdentityVerifier checks a third-party token and returns the verified profile.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (ExternalIdentity, error)
}

type Service struct {
	store      Store
	issuer     *TokenIssuer
	google     IdentityVerifier
	facebook   IdentityVerifier
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(store Store, issuer *TokenIssuer, google, facebook IdentityVerifier, refreshTTL time.Duration) *Service {
	return &Service{
		store:      store,
		issuer:     issuer,
		google:     google,
		facebook:   facebook,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates a password-backed account. Duplicate emails surface as
// ErrEmailTaken.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	hashed := string(hash)
	user := User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        normalizeEmail(input.Email),
		PasswordHash: &hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Login verifies the password and issues a fresh access/refresh pair. Any
// failure to establish identity is ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	// Externally provisioned accounts have no password and can never log in
	// with one.
	if user.PasswordHash == nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user)
}

// Refresh redeems a refresh token exactly once: the presented token is revoked
// and replaced inside a single store transaction, then a new access token is
// minted for the owning user.
func (s *Service) Refresh(ctx context.Context, presented string) (AuthResult, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return AuthResult{}, ErrInvalidRefreshToken
	}

	raw, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now()
	replacement := RefreshTokenRecord{
		ID:        uuid.NewString(),
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	user, err := s.store.RotateRefreshToken(ctx, HashToken(presented), replacement)
	if err != nil {
		return AuthResult{}, err
	}

	access, accessExpiry, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:        access,
		AccessTokenExpiry:  accessExpiry,
		RefreshToken:       raw,
		RefreshTokenExpiry: replacement.ExpiresAt,
		UserID:             user.ID,
		Email:              user.Email,
	}, nil
}

// Logout revokes the presented refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, HashToken(presented))
}

// GoogleSignIn validates a Google ID token and signs the verified identity in,
// provisioning a local account on first use.
func (s *Service) GoogleSignIn(ctx context.Context, idToken string) (AuthResult, error) {
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrInvalidExternalToken, err)
	}
	return s.externalSignIn(ctx, identity)
}

// FacebookSignIn validates a Facebook access token against the Graph API and
// signs the verified identity in.
func (s *Service) FacebookSignIn(ctx context.Context, accessToken string) (AuthResult, error) {
	identity, err := s.facebook.Verify(ctx, accessToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrInvalidExternalToken, err)
	}
	return s.externalSignIn(ctx, identity)
}

func (s *Service) externalSignIn(ctx context.Context, identity ExternalIdentity) (AuthResult, error) {
	email := normalizeEmail(identity.Email)
	if email == "" {
		return AuthResult{}, fmt.Errorf("%w: verified profile has no email", ErrInvalidExternalToken)
	}

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		user, err = s.provision(ctx, identity, email)
	}
	if err != nil {
		return AuthResult{}, err
	}

	return s.issuePair(ctx, user)
}

func (s *Service) provision(ctx context.Context, identity ExternalIdentity, email string) (User, error) {
	now := s.now()
	user := User{
		ID:        uuid.NewString(),
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if identity.SubjectID != "" {
		subject := identity.SubjectID
		user.ExternalID = &subject
	}

	err := s.store.CreateUser(ctx, user)
	if errors.Is(err, ErrEmailTaken) {
		// Lost a race with a concurrent first sign-in; the existing record wins.
		return s.store.UserByEmail(ctx, email)
	}
	if err != nil {
		return User{}, err
	}

	return user, nil
}

func (s *Service) issuePair(ctx context.Context, user User) (AuthResult, error) {
	access, accessExpiry, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return AuthResult{}, err
	}

	raw, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now()
	rec := RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.store.SaveRefreshToken(ctx, rec); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:        access,
		AccessTokenExpiry:  accessExpiry,
		RefreshToken:       raw,
		RefreshTokenExpiry: rec.ExpiresAt,
		UserID:             user.ID,
		Email:              user.Email,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
