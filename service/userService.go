package service

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatherly/gatherly/apperr"
	"github.com/gatherly/gatherly/entity"
	"github.com/gatherly/gatherly/repository"
)

const guestLifetime = 24 * time.Hour

// UserStore is the slice of the user repository the services depend on.
type UserStore interface {
	FindOneByID(ID primitive.ObjectID) (*entity.User, error)
	FindOneByEmail(email string) (*entity.User, error)
	InsertOne(user entity.User) (*entity.User, error)
	PushEventCreated(userID, eventID primitive.ObjectID) error
	PullEventCreated(userID, eventID primitive.ObjectID) error
	PushEventAttending(userID, eventID primitive.ObjectID) error
	PullEventAttending(userID, eventID primitive.ObjectID) error
	PullEventFromAll(eventID primitive.ObjectID) error
	FindExpiredGuests(now time.Time) ([]*entity.User, error)
	DeleteManyByIDs(IDs []primitive.ObjectID) error
}

type UserService struct {
	userRepository  UserStore
	eventRepository EventStore
}

func NewUserService(userRepository UserStore, eventRepository EventStore) *UserService {
	return &UserService{
		userRepository:  userRepository,
		eventRepository: eventRepository,
	}
}

func (s *UserService) Register(name, email, password string) (*entity.User, error) {
	_, err := s.userRepository.FindOneByEmail(email)
	if err == nil {
		return nil, apperr.Validation("Email already in use")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Dependency("Could not look up account", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.InsertOne(entity.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
	})
	if err != nil {
		return nil, apperr.Dependency("Could not create account", err)
	}

	return user, nil
}

func (s *UserService) Login(email, password string) (*entity.User, error) {
	user, err := s.userRepository.FindOneByEmail(email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Authentication("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Dependency("Could not look up account", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperr.Authentication("Invalid credentials")
	}

	return user, nil
}

// GuestLogin creates a throwaway account that expires 24 hours after
// creation. Guests can join and leave events but cannot create them.
func (s *UserService) GuestLogin(name string) (*entity.User, error) {
	if name == "" {
		name = "Guest"
	}

	suffix := primitive.NewObjectID().Hex()
	user, err := s.userRepository.InsertOne(entity.User{
		Name:            name,
		Email:           "guest-" + suffix + "@guest.local",
		IsGuest:         true,
		GuestExpiryDate: time.Now().Add(guestLifetime),
	})
	if err != nil {
		return nil, apperr.Dependency("Could not create guest account", err)
	}

	return user, nil
}

func (s *UserService) FindOneByID(ID primitive.ObjectID) (*entity.User, error) {
	user, err := s.userRepository.FindOneByID(ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Dependency("Could not look up account", err)
	}

	return user, nil
}

// PurgeExpiredGuests deletes guest accounts past their expiry date,
// pulling each one out of the attendee sets it still occupies first so
// events never reference a deleted user.
func (s *UserService) PurgeExpiredGuests(now time.Time) (int, error) {
	guests, err := s.userRepository.FindExpiredGuests(now)
	if err != nil {
		return 0, err
	}
	if len(guests) == 0 {
		return 0, nil
	}

	IDs := make([]primitive.ObjectID, 0, len(guests))
	for _, guest := range guests {
		for _, eventID := range guest.EventsAttending {
			if _, err := s.eventRepository.RemoveAttendee(eventID, guest.ID); err != nil {
				log.Error().Err(err).
					Str("userId", guest.ID.Hex()).
					Str("eventId", eventID.Hex()).
					Msg("guest sweep: could not remove attendee")
				continue
			}
		}
		IDs = append(IDs, guest.ID)
	}

	if err := s.userRepository.DeleteManyByIDs(IDs); err != nil {
		return 0, err
	}

	return len(IDs), nil
}
