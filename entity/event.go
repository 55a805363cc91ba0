package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Date        time.Time          `bson:"date" json:"date"`
	Location    string             `bson:"location" json:"location"`
	Category    string             `bson:"category" json:"category"`
	Capacity    int                `bson:"capacity" json:"capacity"`
	ImageURL    string             `bson:"imageUrl" json:"imageUrl"`

	CreatorID   primitive.ObjectID   `bson:"creator" json:"creatorId"`
	AttendeeIDs []primitive.ObjectID `bson:"attendees" json:"-"`

	// Populated via $lookup, never persisted.
	Creator   *UserSummary   `bson:"creatorUser,omitempty" json:"creator,omitempty"`
	Attendees []*UserSummary `bson:"attendeeUsers,omitempty" json:"attendees"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt"`
}

func (e *Event) IsFull() bool {
	return len(e.AttendeeIDs) >= e.Capacity
}

func (e *Event) HasAttendee(userID primitive.ObjectID) bool {
	for _, id := range e.AttendeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Occupancy returns the attendee count over capacity as a fraction.
// A zero-capacity event counts as full.
func (e *Event) Occupancy() float64 {
	if e.Capacity == 0 {
		return 1
	}
	return float64(len(e.AttendeeIDs)) / float64(e.Capacity)
}
