package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jjudge-oj/accounts/internal/forms"
	"github.com/jjudge-oj/accounts/internal/passwords"
	"github.com/jjudge-oj/accounts/internal/store"
	"github.com/jjudge-oj/accounts/types"
)

// ErrInvalidCredentials is returned for every failed login, whatever the cause.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// EventPublisher receives account lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event types.AccountEvent) (string, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher *passwords.Hasher
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService wires the service. events and logger may be nil.
func NewUserService(repo UserRepository, hasher *passwords.Hasher, events EventPublisher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register validates the form and creates the account. Input problems come back
// as forms.Errors; nothing is written in that case.
func (s *UserService) Register(ctx context.Context, form forms.Registration) (types.User, error) {
	errs := forms.Validate(&form)
	if errs == nil {
		errs = forms.Errors{}
	}

	if len(errs.For("username")) == 0 {
		taken, err := s.usernameTaken(ctx, form.Username, 0)
		if err != nil {
			return types.User{}, err
		}
		if taken {
			errs.Add("username", forms.MsgUsernameTaken)
		}
	}
	if len(errs) > 0 {
		return types.User{}, errs
	}

	hashed, err := s.hasher.Hash(form.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     form.Username,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		PasswordHash: hashed,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, forms.Errors{"username": {forms.MsgUsernameTaken}}
		}
		return types.User{}, err
	}

	s.publish(ctx, types.EventUserRegistered, user)
	return user, nil
}

// Authenticate checks a username/password pair. Unknown users, inactive users and
// wrong passwords all yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same hashing time as for a real account.
			s.hasher.Verify(s.dummy(), password)
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) || !user.IsActive {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RecordLogin stamps last_login once a session has been established.
func (s *UserService) RecordLogin(ctx context.Context, user types.User) error {
	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return err
	}
	s.publish(ctx, types.EventUserLoggedIn, user)
	return nil
}

// RecordLogout publishes the logout of an authenticated user.
func (s *UserService) RecordLogout(ctx context.Context, userID int64) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		user = types.User{ID: userID}
	}
	s.publish(ctx, types.EventUserLoggedOut, user)
}

// UpdateProfile applies the edit form to the user identified by userID only.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, form forms.Profile) (types.User, error) {
	errs := forms.Validate(&form)
	if errs == nil {
		errs = forms.Errors{}
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	if len(errs.For("username")) == 0 && form.Username != user.Username {
		taken, err := s.usernameTaken(ctx, form.Username, userID)
		if err != nil {
			return types.User{}, err
		}
		if taken {
			errs.Add("username", forms.MsgUsernameTaken)
		}
	}
	if len(errs) > 0 {
		return types.User{}, errs
	}

	user.Username = form.Username
	user.FirstName = form.FirstName
	user.LastName = form.LastName
	user.Email = form.Email

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, forms.Errors{"username": {forms.MsgUsernameTaken}}
		}
		return types.User{}, err
	}

	s.publish(ctx, types.EventUserUpdated, updated)
	return updated, nil
}

func (s *UserService) usernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return existing.ID != exceptID, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

func (s *UserService) publish(ctx context.Context, eventType types.EventType, user types.User) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishEvent(ctx, types.AccountEvent{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish account event",
			zap.String("type", string(eventType)),
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
	}
}
