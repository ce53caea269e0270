package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/storage"
)

const minPasswordLen = 6

// Session is what a successful login returns.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type Service struct {
	Users  storage.UserStore
	Tokens *TokenManager
	Cost   int
	Logger *slog.Logger
}

func NewService(users storage.UserStore, tokens *TokenManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{Users: users, Tokens: tokens, Cost: bcrypt.DefaultCost, Logger: logger}
}

func (s *Service) Register(ctx context.Context, username, password string, hasCar bool) (models.User, error) {
	const op = "auth.register"
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, apperr.Invalid(op, "username", "is required")
	}
	if len(password) < minPasswordLen {
		return models.User{}, apperr.Invalid(op, "password", "must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.KindInvalidInput, op, err)
	}
	u := models.User{Username: username, PasswordHash: string(hash), HasCar: hasCar}
	if err := s.Users.CreateUser(ctx, &u); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return models.User{}, &apperr.Error{Kind: apperr.KindConflict, Op: op, Msg: "username already exists", Err: err}
		}
		return models.User{}, err
	}
	s.Logger.Info("user_registered", "user_id", u.ID, "username", u.Username, "has_car", u.HasCar)
	return u, nil
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	const op = "auth.login"
	invalid := apperr.New(apperr.KindUnauthorized, op, "invalid username or password")

	u, err := s.Users.UserByUsername(ctx, strings.TrimSpace(username))
	if apperr.Is(err, apperr.KindNotFound) {
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.Logger.Warn("password hash check failed", "user_id", u.ID, "error", err)
		}
		return Session{}, invalid
	}
	token, err := s.Tokens.Issue(u.ID, u.Username, u.Role)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindStorageFailure, op+".sign", err)
	}
	return Session{Token: token, User: u}, nil
}
