package service

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gatherly/gatherly/apperr"
	"github.com/gatherly/gatherly/entity"
	"github.com/gatherly/gatherly/realtime"
	"github.com/gatherly/gatherly/repository"
)

// EventStore is the slice of the event repository the service depends on.
// AddAttendee must be atomic: it appends the user only while the user is
// absent and the set is below capacity, in a single conditional write.
type EventStore interface {
	FindAll() ([]*entity.Event, error)
	FindOneByID(ID primitive.ObjectID) (*entity.Event, error)
	InsertOne(event entity.Event) (*entity.Event, error)
	UpdateDescriptive(event entity.Event) (*entity.Event, error)
	AddAttendee(eventID, userID primitive.ObjectID) (bool, error)
	RemoveAttendee(eventID, userID primitive.ObjectID) (bool, error)
	DeleteOneByID(ID primitive.ObjectID) error
}

// Publisher fans out membership changes to clients subscribed to the
// event's channel. Implementations must not block the caller.
type Publisher interface {
	PublishEventUpdate(eventID string, event *entity.Event)
	PublishUserJoined(eventID string, n realtime.MembershipNotification)
	PublishUserLeft(eventID string, n realtime.MembershipNotification)
}

type EventService struct {
	eventRepository EventStore
	userRepository  UserStore
	publisher       Publisher
	uploader        Uploader
}

func NewEventService(eventRepository EventStore, userRepository UserStore, publisher Publisher, uploader Uploader) *EventService {
	return &EventService{
		eventRepository: eventRepository,
		userRepository:  userRepository,
		publisher:       publisher,
		uploader:        uploader,
	}
}

type EventInput struct {
	Name        string
	Description string
	Date        time.Time
	Location    string
	Category    string
	Capacity    int
	ImageURL    string
}

func (in *EventInput) validate() error {
	if in.Name == "" || in.Description == "" || in.Location == "" || in.Category == "" || in.ImageURL == "" || in.Date.IsZero() {
		return apperr.Validation("All fields are required")
	}
	if in.Capacity <= 0 {
		return apperr.Validation("Capacity must be a positive number")
	}
	return nil
}

func (s *EventService) CreateEvent(caller *entity.User, input EventInput) (*entity.Event, error) {
	if caller.IsGuest {
		return nil, apperr.Authorization("Guest accounts cannot create events")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	imageURL, err := s.uploader.Upload(input.ImageURL)
	if err != nil {
		return nil, err
	}

	event, err := s.eventRepository.InsertOne(entity.Event{
		Name:        input.Name,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		Category:    input.Category,
		Capacity:    input.Capacity,
		ImageURL:    imageURL,
		CreatorID:   caller.ID,
	})
	if err != nil {
		return nil, apperr.Dependency("Could not create event", err)
	}

	retrier := retry.NewRetrier(5, 100*time.Millisecond, time.Second)
	err = retrier.Run(func() error {
		return s.userRepository.PushEventCreated(caller.ID, event.ID)
	})
	if err != nil {
		// Back-reference write failed after the event exists; undo the
		// create rather than leave a dangling document.
		if delErr := s.eventRepository.DeleteOneByID(event.ID); delErr != nil {
			log.Error().Err(delErr).
				Str("eventId", event.ID.Hex()).
				Msg("create compensation failed, orphan event document")
		}
		return nil, apperr.Dependency("Could not create event", err)
	}

	return event, nil
}

func (s *EventService) UpdateEvent(eventID primitive.ObjectID, caller *entity.User, input EventInput) (*entity.Event, error) {
	event, err := s.findEvent(eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatorID != caller.ID {
		return nil, apperr.Authorization("Not authorized to update this event")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.Capacity < len(event.AttendeeIDs) {
		return nil, apperr.Validation("Capacity cannot be less than the current number of attendees")
	}

	imageURL := event.ImageURL
	if input.ImageURL != "" && input.ImageURL != event.ImageURL {
		imageURL, err = s.uploader.Upload(input.ImageURL)
		if err != nil {
			return nil, err
		}
	}

	event.Name = input.Name
	event.Description = input.Description
	event.Date = input.Date
	event.Location = input.Location
	event.Category = input.Category
	event.Capacity = input.Capacity
	event.ImageURL = imageURL

	updated, err := s.eventRepository.UpdateDescriptive(*event)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Event not found")
	}
	if err != nil {
		return nil, apperr.Dependency("Could not update event", err)
	}

	s.publisher.PublishEventUpdate(updated.ID.Hex(), updated)

	return updated, nil
}

// DeleteEvent removes the event and every reference to it. The cascade
// steps are all idempotent pulls, so a failed delete can be retried until
// it completes without leaving duplicate side effects.
func (s *EventService) DeleteEvent(eventID primitive.ObjectID, caller *entity.User) error {
	event, err := s.findEvent(eventID)
	if err != nil {
		return err
	}
	if event.CreatorID != caller.ID {
		return apperr.Authorization("Not authorized to delete this event")
	}

	retrier := retry.NewRetrier(5, 100*time.Millisecond, time.Second)

	err = retrier.Run(func() error {
		return s.userRepository.PullEventCreated(event.CreatorID, event.ID)
	})
	if err != nil {
		return apperr.Dependency("Could not delete event, try again", err)
	}

	err = retrier.Run(func() error {
		return s.userRepository.PullEventFromAll(event.ID)
	})
	if err != nil {
		return apperr.Dependency("Could not delete event, try again", err)
	}

	err = retrier.Run(func() error {
		return s.eventRepository.DeleteOneByID(event.ID)
	})
	if err != nil {
		return apperr.Dependency("Could not delete event, try again", err)
	}

	return nil
}

// JoinEvent adds the caller to the event's attendee set. Preconditions are
// checked in order: identity, existence, duplicate membership, capacity.
// The membership write itself is a single conditional update, so two
// concurrent joins can never push the set over capacity.
func (s *EventService) JoinEvent(eventID primitive.ObjectID, caller *entity.User) (*entity.Event, error) {
	if caller.IsGuest {
		return nil, apperr.Authorization("Guest accounts cannot join events")
	}

	added, err := s.eventRepository.AddAttendee(eventID, caller.ID)
	if err != nil {
		return nil, apperr.Dependency("Could not join event", err)
	}

	if !added {
		// The guarded write matched nothing; read the event to report why.
		event, err := s.findEvent(eventID)
		if err != nil {
			return nil, err
		}
		if event.HasAttendee(caller.ID) {
			return nil, apperr.Conflict("Already attending this event")
		}
		return nil, apperr.Capacity("Event is full")
	}

	retrier := retry.NewRetrier(5, 100*time.Millisecond, time.Second)
	err = retrier.Run(func() error {
		return s.userRepository.PushEventAttending(caller.ID, eventID)
	})
	if err != nil {
		log.Error().Err(err).
			Str("eventId", eventID.Hex()).
			Str("userId", caller.ID.Hex()).
			Msg("join: back-reference write failed, rolling back membership")
		if _, rbErr := s.eventRepository.RemoveAttendee(eventID, caller.ID); rbErr != nil {
			log.Error().Err(rbErr).
				Str("eventId", eventID.Hex()).
				Str("userId", caller.ID.Hex()).
				Msg("join: rollback failed, membership diverged")
		}
		return nil, apperr.Dependency("Could not join event", err)
	}

	event, err := s.findEvent(eventID)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEventUpdate(eventID.Hex(), event)
	s.publisher.PublishUserJoined(eventID.Hex(), realtime.MembershipNotification{
		Username:  caller.Name,
		UserID:    caller.ID.Hex(),
		Timestamp: time.Now(),
	})

	return event, nil
}

// LeaveEvent removes the caller from the event. Leaving an event the
// caller never joined is a no-op, not an error.
func (s *EventService) LeaveEvent(eventID primitive.ObjectID, caller *entity.User) (*entity.Event, error) {
	if _, err := s.findEvent(eventID); err != nil {
		return nil, err
	}

	if _, err := s.eventRepository.RemoveAttendee(eventID, caller.ID); err != nil {
		return nil, apperr.Dependency("Could not leave event", err)
	}

	retrier := retry.NewRetrier(5, 100*time.Millisecond, time.Second)
	err := retrier.Run(func() error {
		return s.userRepository.PullEventAttending(caller.ID, eventID)
	})
	if err != nil {
		log.Error().Err(err).
			Str("eventId", eventID.Hex()).
			Str("userId", caller.ID.Hex()).
			Msg("leave: back-reference write failed, membership diverged")
		return nil, apperr.Dependency("Could not leave event", err)
	}

	event, err := s.findEvent(eventID)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEventUpdate(eventID.Hex(), event)
	s.publisher.PublishUserLeft(eventID.Hex(), realtime.MembershipNotification{
		Username:  caller.Name,
		UserID:    caller.ID.Hex(),
		Timestamp: time.Now(),
	})

	return event, nil
}

func (s *EventService) GetEventByID(eventID primitive.ObjectID) (*entity.Event, error) {
	return s.findEvent(eventID)
}

func (s *EventService) findEvent(eventID primitive.ObjectID) (*entity.Event, error) {
	event, err := s.eventRepository.FindOneByID(eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Event not found")
	}
	if err != nil {
		return nil, apperr.Dependency("Could not load event", err)
	}
	return event, nil
}

// EventQuery narrows and orders the event list. Zero values mean "all
// events, date ascending".
type EventQuery struct {
	Category  string
	DateRange string // upcoming, this-week, this-month
	Occupancy string // available, almostFull, full
	Search    string
	Sort      string // popular, newest, capacity
}

func (s *EventService) ListEvents(query EventQuery) ([]*entity.Event, error) {
	events, err := s.eventRepository.FindAll()
	if err != nil {
		return nil, apperr.Dependency("Could not load events", err)
	}

	filtered := make([]*entity.Event, 0, len(events))
	now := time.Now()
	for _, event := range events {
		if query.Category != "" && !strings.EqualFold(event.Category, query.Category) {
			continue
		}
		if !matchDateRange(event, query.DateRange, now) {
			continue
		}
		if !matchOccupancy(event, query.Occupancy) {
			continue
		}
		if !matchSearch(event, query.Search) {
			continue
		}
		filtered = append(filtered, event)
	}

	sortEvents(filtered, query.Sort)

	return filtered, nil
}

func matchDateRange(event *entity.Event, dateRange string, now time.Time) bool {
	switch dateRange {
	case "upcoming":
		return event.Date.After(now)
	case "this-week":
		return event.Date.After(now) && event.Date.Before(now.AddDate(0, 0, 7))
	case "this-month":
		return event.Date.After(now) && event.Date.Before(now.AddDate(0, 1, 0))
	default:
		return true
	}
}

func matchOccupancy(event *entity.Event, occupancy string) bool {
	ratio := event.Occupancy()
	switch occupancy {
	case "available":
		return ratio < 0.8
	case "almostFull":
		return ratio >= 0.8 && ratio < 1
	case "full":
		return ratio >= 1
	default:
		return true
	}
}

func matchSearch(event *entity.Event, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, haystack := range []string{event.Name, event.Description, event.Location} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

func sortEvents(events []*entity.Event, key string) {
	switch key {
	case "popular":
		sort.SliceStable(events, func(i, j int) bool {
			return len(events[i].AttendeeIDs) > len(events[j].AttendeeIDs)
		})
	case "newest":
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date.After(events[j].Date)
		})
	case "capacity":
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Capacity > events[j].Capacity
		})
	default:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date.Before(events[j].Date)
		})
	}
}
