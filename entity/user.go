package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password" json:"-"`
	Name     string             `bson:"name" json:"name"`

	IsGuest         bool      `bson:"isGuest" json:"isGuest"`
	GuestExpiryDate time.Time `bson:"guestExpiryDate,omitempty" json:"guestExpiryDate,omitempty"`

	EventsCreated   []primitive.ObjectID `bson:"eventsCreated" json:"eventsCreated"`
	EventsAttending []primitive.ObjectID `bson:"eventsAttending" json:"eventsAttending"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// UserSummary is the projection of a user embedded in event responses.
type UserSummary struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name}
}

// GuestExpired reports whether a guest account is past its expiry date.
// Always false for full accounts.
func (u *User) GuestExpired(now time.Time) bool {
	return u.IsGuest && !u.GuestExpiryDate.IsZero() && now.After(u.GuestExpiryDate)
}

func (u *User) IsAttending(eventID primitive.ObjectID) bool {
	for _, id := range u.EventsAttending {
		if id == eventID {
			return true
		}
	}
	return false
}
