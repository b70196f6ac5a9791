package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/bloglist/internal/config"
	"github.com/alphabot-ai/bloglist/internal/model"
	"github.com/alphabot-ai/bloglist/internal/store"
	"github.com/alphabot-ai/bloglist/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("token invalid")
	ErrMissingToken       = errors.New("token missing")
)

type Service struct {
	users      store.UserStore
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	tokenTTL   time.Duration
	bcryptCost int
}

// Verified identifies the user a bearer token was issued to.
type Verified struct {
	UserID   string
	Username string
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// bcrypt ignores input past this length and GenerateFromPassword rejects it.
const maxPasswordBytes = 72

// NewUser is the registration payload.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3"`
	Name     string `json:"name"`
	Password string `json:"password" validate:"required,min=3"`
}

func NewService(users store.UserStore, cfg config.AuthConfig) (*Service, error) {
	s := &Service{
		users:      users,
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: cfg.BcryptCost,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	switch cfg.Signing {
	case "", "HS256":
		s.method = jwt.SigningMethodHS256
		s.signKey = []byte(cfg.Secret)
		s.verifyKey = []byte(cfg.Secret)
	case "ES256K":
		priv := deriveSecp256k1Key(cfg.Secret)
		s.method = SigningMethodES256K
		s.signKey = priv
		s.verifyKey = priv.PubKey()
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.Signing)
	}
	return s, nil
}

// Register validates and stores a new user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in NewUser) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return model.User{}, err
	}
	if len(in.Password) > maxPasswordBytes {
		return model.User{}, &validation.Error{Messages: []string{
			fmt.Sprintf("`password` must be at most %d bytes long", maxPasswordBytes),
		}}
	}
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	user := model.User{
		Username:     in.Username,
		Name:         in.Name,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Login checks the password and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (model.Token, model.User, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, model.User{}, ErrInvalidCredentials
		}
		return model.Token{}, model.User{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return model.Token{}, model.User{}, ErrInvalidCredentials
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return model.Token{}, model.User{}, err
	}
	return token, user, nil
}

func (s *Service) IssueToken(user model.User) (model.Token, error) {
	now := time.Now()
	expires := now.Add(s.tokenTTL)
	c := claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, c).SignedString(s.signKey)
	if err != nil {
		return model.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Token{Token: signed, UserID: user.ID, Username: user.Username, ExpiresAt: expires}, nil
}

// Authenticate verifies a bearer token and that its user still exists.
func (s *Service) Authenticate(ctx context.Context, bearer string) (Verified, error) {
	if bearer == "" || bearer == "null" {
		return Verified{}, ErrMissingToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(bearer, &c, func(*jwt.Token) (any, error) {
		return s.verifyKey, nil
	}, jwt.WithValidMethods([]string{s.method.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return Verified{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Verified{}, ErrInvalidToken
	}
	if _, err := s.users.GetUser(ctx, c.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Verified{}, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return Verified{}, err
	}
	return Verified{UserID: c.Subject, Username: c.Username}, nil
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
