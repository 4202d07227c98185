package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/avvvet/rookies-services/internal/auth"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

type SignupInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserService struct represents the user service layer
type UserService struct {
	users           store.UserRepository
	startingBalance decimal.Decimal
	now             func() time.Time
}

// NewUserService creates a new UserService instance
func NewUserService(users store.UserRepository, startingBalance decimal.Decimal) *UserService {
	return &UserService{
		users:           users,
		startingBalance: startingBalance,
		now:             time.Now,
	}
}

func (in *SignupInput) validate() error {
	v := newValidation("Invalid signup data")

	in.Email = strings.TrimSpace(in.Email)
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		v.Add("email", "must be a valid email address")
	}
	if n := len(in.Password); n < minPasswordLen || n > maxPasswordLen {
		v.Add("password", fmt.Sprintf("must be %d to %d characters", minPasswordLen, maxPasswordLen))
	}
	for field, name := range map[string]*string{"firstName": in.FirstName, "lastName": in.LastName} {
		if name == nil {
			continue
		}
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			v.Add(field, "must not be empty")
		}
		*name = trimmed
	}
	return v.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Signup registers a user with the starting balance.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Email:         in.Email,
		PasswordHash:  hash,
		FirstName:     deref(in.FirstName),
		LastName:      deref(in.LastName),
		Balance:       s.startingBalance,
		TotalWinnings: decimal.Zero,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Infof("user %d signed up", user.ID)
	return user, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		log.Warnf("password check for user %d: %s", user.ID, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// SetPresence records the user as online or offline as of now.
func (s *UserService) SetPresence(ctx context.Context, id int64, online bool) error {
	if err := s.users.SetOnline(ctx, id, online, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

func (s *UserService) ListFriends(ctx context.Context, id int64) ([]*models.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	return s.users.ListFriends(ctx, id)
}

func (s *UserService) AddFriend(ctx context.Context, callerID, userID, friendID int64) error {
	if callerID != userID {
		return ErrForbidden
	}
	if friendID <= 0 {
		v := newValidation("Invalid friend request")
		v.Add("friendId", "required")
		return v
	}

	err := s.users.AddFriend(ctx, userID, friendID)
	switch {
	case errors.Is(err, store.ErrSelfFriendship):
		v := newValidation("Invalid friend request")
		v.Add("friendId", "cannot befriend yourself")
		return v
	case errors.Is(err, store.ErrFriendshipExists):
		return ErrAlreadyFriends
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case err != nil:
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}
