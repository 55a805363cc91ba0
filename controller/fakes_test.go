package controller

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gatherly/gatherly/entity"
	"github.com/gatherly/gatherly/middleware"
	"github.com/gatherly/gatherly/realtime"
	"github.com/gatherly/gatherly/repository"
	"github.com/gatherly/gatherly/service"
)

// memStore backs the controllers with the same conditional-write
// semantics as the mongo repositories.
type memStore struct {
	mu     sync.Mutex
	events map[primitive.ObjectID]*entity.Event
	users  map[primitive.ObjectID]*entity.User
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[primitive.ObjectID]*entity.Event),
		users:  make(map[primitive.ObjectID]*entity.User),
	}
}

func (m *memStore) addUser(name string, guest bool) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := &entity.User{
		ID:      primitive.NewObjectID(),
		Name:    name,
		Email:   name + "@example.com",
		IsGuest: guest,
	}
	if guest {
		user.GuestExpiryDate = time.Now().Add(24 * time.Hour)
	}
	m.users[user.ID] = user
	return user
}

func (m *memStore) addEvent(creator *entity.User, capacity int) *entity.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	event := &entity.Event{
		ID:          primitive.NewObjectID(),
		Name:        "Test Event",
		Description: "A test event",
		Date:        time.Now().Add(48 * time.Hour),
		Location:    "Somewhere",
		Category:    "test",
		Capacity:    capacity,
		ImageURL:    "https://img.example.com/1.png",
		CreatorID:   creator.ID,
		AttendeeIDs: []primitive.ObjectID{},
	}
	m.events[event.ID] = event
	creator.EventsCreated = append(creator.EventsCreated, event.ID)
	return event
}

// projectLocked mirrors the $lookup populate of the mongo repository.
func (m *memStore) projectLocked(event *entity.Event) *entity.Event {
	projected := *event
	projected.AttendeeIDs = append([]primitive.ObjectID{}, event.AttendeeIDs...)
	projected.Attendees = make([]*entity.UserSummary, 0, len(event.AttendeeIDs))
	for _, id := range event.AttendeeIDs {
		if user, ok := m.users[id]; ok {
			projected.Attendees = append(projected.Attendees, user.Summary())
		}
	}
	if creator, ok := m.users[event.CreatorID]; ok {
		projected.Creator = creator.Summary()
	}
	return &projected
}

type eventStoreView struct{ *memStore }

func (v eventStoreView) FindAll() ([]*entity.Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	events := make([]*entity.Event, 0, len(v.events))
	for _, event := range v.events {
		events = append(events, v.projectLocked(event))
	}
	return events, nil
}

func (v eventStoreView) FindOneByID(ID primitive.ObjectID) (*entity.Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	event, ok := v.events[ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.projectLocked(event), nil
}

func (v eventStoreView) InsertOne(event entity.Event) (*entity.Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.AttendeeIDs == nil {
		event.AttendeeIDs = []primitive.ObjectID{}
	}
	stored := event
	v.events[event.ID] = &stored
	return v.projectLocked(&stored), nil
}

func (v eventStoreView) UpdateDescriptive(event entity.Event) (*entity.Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stored, ok := v.events[event.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	stored.Name = event.Name
	stored.Description = event.Description
	stored.Date = event.Date
	stored.Location = event.Location
	stored.Category = event.Category
	stored.Capacity = event.Capacity
	stored.ImageURL = event.ImageURL
	return v.projectLocked(stored), nil
}

func (v eventStoreView) AddAttendee(eventID, userID primitive.ObjectID) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	event, ok := v.events[eventID]
	if !ok || event.HasAttendee(userID) || event.IsFull() {
		return false, nil
	}
	event.AttendeeIDs = append(event.AttendeeIDs, userID)
	return true, nil
}

func (v eventStoreView) RemoveAttendee(eventID, userID primitive.ObjectID) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	event, ok := v.events[eventID]
	if !ok {
		return false, nil
	}
	for i, id := range event.AttendeeIDs {
		if id == userID {
			event.AttendeeIDs = append(event.AttendeeIDs[:i], event.AttendeeIDs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (v eventStoreView) DeleteOneByID(ID primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.events, ID)
	return nil
}

type userStoreView struct{ *memStore }

func (v userStoreView) FindOneByID(ID primitive.ObjectID) (*entity.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	user, ok := v.users[ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (v userStoreView) FindOneByEmail(email string) (*entity.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, user := range v.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v userStoreView) InsertOne(user entity.User) (*entity.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	stored := user
	v.users[user.ID] = &stored
	copied := stored
	return &copied, nil
}

func (v userStoreView) PushEventCreated(userID, eventID primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if user, ok := v.users[userID]; ok {
		user.EventsCreated = append(user.EventsCreated, eventID)
	}
	return nil
}

func (v userStoreView) PullEventCreated(userID, eventID primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if user, ok := v.users[userID]; ok {
		user.EventsCreated = dropID(user.EventsCreated, eventID)
	}
	return nil
}

func (v userStoreView) PushEventAttending(userID, eventID primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if user, ok := v.users[userID]; ok {
		user.EventsAttending = append(user.EventsAttending, eventID)
	}
	return nil
}

func (v userStoreView) PullEventAttending(userID, eventID primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if user, ok := v.users[userID]; ok {
		user.EventsAttending = dropID(user.EventsAttending, eventID)
	}
	return nil
}

func (v userStoreView) PullEventFromAll(eventID primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, user := range v.users {
		user.EventsAttending = dropID(user.EventsAttending, eventID)
	}
	return nil
}

func (v userStoreView) FindExpiredGuests(now time.Time) ([]*entity.User, error) {
	return nil, nil
}

func (v userStoreView) DeleteManyByIDs(IDs []primitive.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range IDs {
		delete(v.users, id)
	}
	return nil
}

func dropID(IDs []primitive.ObjectID, target primitive.ObjectID) []primitive.ObjectID {
	out := IDs[:0]
	for _, id := range IDs {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

type noopPublisher struct{}

func (noopPublisher) PublishEventUpdate(string, *entity.Event)                  {}
func (noopPublisher) PublishUserJoined(string, realtime.MembershipNotification) {}
func (noopPublisher) PublishUserLeft(string, realtime.MembershipNotification)   {}

type passthroughUploader struct{}

func (passthroughUploader) Upload(image string) (string, error) {
	return image, nil
}

type testAPI struct {
	router *gin.Engine
	store  *memStore
	auth   *middleware.AuthMiddleware
}

func newTestAPI() *testAPI {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	userService := service.NewUserService(userStoreView{store}, eventStoreView{store})
	eventService := service.NewEventService(eventStoreView{store}, userStoreView{store}, noopPublisher{}, passthroughUploader{})

	auth := middleware.NewAuthMiddleware("test-secret", userService)

	userController := &UserController{UserService: userService, Auth: auth}
	eventController := &EventController{EventService: eventService}

	r := gin.New()

	user := r.Group("/api/user")
	{
		user.POST("/register", userController.Register)
		user.POST("/login", userController.Login)
		user.POST("/guest-login", userController.GuestLogin)
		user.GET("/logout", userController.Logout)
		user.GET("/checkauth", auth.RequireAuth(), userController.CheckAuth)
	}

	events := r.Group("/api/events")
	{
		events.GET("", eventController.List)
		events.GET("/:id", eventController.GetByID)
		events.POST("", auth.RequireAuth(), eventController.Create)
		events.PUT("/:id", auth.RequireAuth(), eventController.Update)
		events.DELETE("/:id", auth.RequireAuth(), eventController.Delete)
		events.POST("/:id/join", auth.RequireAuth(), eventController.Join)
		events.POST("/:id/leave", auth.RequireAuth(), eventController.Leave)
	}

	return &testAPI{router: r, store: store, auth: auth}
}

func (api *testAPI) cookieFor(user *entity.User) *http.Cookie {
	token, err := api.auth.IssueToken(user.ID)
	if err != nil {
		panic(err)
	}
	return &http.Cookie{Name: middleware.CookieName, Value: token}
}
