package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/entity"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("not found")

type EventRepository struct {
	mongoClient  *mongo.Client
	databaseName string
}

func NewEventRepository(mongoClient *mongo.Client, databaseName string) *EventRepository {
	return &EventRepository{
		mongoClient:  mongoClient,
		databaseName: databaseName,
	}
}

func (r *EventRepository) collection() *mongo.Collection {
	return r.mongoClient.Database(r.databaseName).Collection("events")
}

func (r *EventRepository) FindAll() ([]*entity.Event, error) {
	return r.find(
		bson.M{},
		bson.M{
			"$sort": bson.M{
				"date": 1,
			},
		},
	)
}

func (r *EventRepository) FindOneByID(ID primitive.ObjectID) (*entity.Event, error) {
	events, err := r.find(bson.M{"_id": ID})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}

	return events[0], nil
}

func (r *EventRepository) find(m bson.M, stages ...bson.M) ([]*entity.Event, error) {
	pipeline := bson.A{
		bson.M{
			"$match": m,
		},
		bson.M{
			"$lookup": bson.M{
				"from":         "users",
				"localField":   "creator",
				"foreignField": "_id",
				"as":           "creatorUser",
			},
		},
		bson.M{
			"$unwind": bson.M{
				"path":                       "$creatorUser",
				"preserveNullAndEmptyArrays": true,
			},
		},
		bson.M{
			"$lookup": bson.M{
				"from":         "users",
				"localField":   "attendees",
				"foreignField": "_id",
				"as":           "attendeeUsers",
			},
		},
	}
	for _, stage := range stages {
		pipeline = append(pipeline, stage)
	}

	cur, err := r.collection().Aggregate(context.TODO(), pipeline)
	if err != nil {
		return nil, err
	}

	var events []*entity.Event
	err = cur.All(context.TODO(), &events)
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *EventRepository) InsertOne(event entity.Event) (*entity.Event, error) {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	if event.AttendeeIDs == nil {
		event.AttendeeIDs = []primitive.ObjectID{}
	}
	event.Creator = nil
	event.Attendees = nil

	_, err := r.collection().InsertOne(context.TODO(), event)
	if err != nil {
		return nil, err
	}

	return r.FindOneByID(event.ID)
}

// UpdateDescriptive rewrites the descriptive fields only, never the
// attendee set or creator, so it cannot clobber a concurrent join or
// leave. Returns the updated event with projections populated.
func (r *EventRepository) UpdateDescriptive(event entity.Event) (*entity.Event, error) {
	filter := bson.M{"_id": event.ID}
	update := bson.M{
		"$set": bson.M{
			"name":        event.Name,
			"description": event.Description,
			"date":        event.Date,
			"location":    event.Location,
			"category":    event.Category,
			"capacity":    event.Capacity,
			"imageUrl":    event.ImageURL,
			"updatedAt":   time.Now(),
		},
	}

	after := options.After
	opts := options.FindOneAndUpdateOptions{
		ReturnDocument: &after,
	}

	result := r.collection().FindOneAndUpdate(context.TODO(), filter, update, &opts)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var newEvent *entity.Event
	err := result.Decode(&newEvent)
	if err != nil {
		return nil, err
	}

	return r.FindOneByID(newEvent.ID)
}

// AddAttendee appends userID to the event's attendee set with a single
// conditional update: the write only matches while the user is absent and
// the set is below capacity, so concurrent joins cannot overshoot.
// Returns false when the condition did not hold at write time.
func (r *EventRepository) AddAttendee(eventID, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id": eventID,
		"attendees": bson.M{
			"$ne": userID,
		},
		"$expr": bson.M{
			"$lt": bson.A{
				bson.M{"$size": "$attendees"},
				"$capacity",
			},
		},
	}
	update := bson.M{
		"$push": bson.M{
			"attendees": userID,
		},
		"$currentDate": bson.M{
			"updatedAt": true,
		},
	}

	res, err := r.collection().UpdateOne(context.TODO(), filter, update)
	if err != nil {
		return false, err
	}

	return res.ModifiedCount == 1, nil
}

// RemoveAttendee pulls userID from the attendee set. Removing a non-member
// matches nothing and reports false without error.
func (r *EventRepository) RemoveAttendee(eventID, userID primitive.ObjectID) (bool, error) {
	update := bson.M{
		"$pull": bson.M{
			"attendees": userID,
		},
		"$currentDate": bson.M{
			"updatedAt": true,
		},
	}

	res, err := r.collection().UpdateOne(context.TODO(), bson.M{"_id": eventID}, update)
	if err != nil {
		return false, err
	}

	return res.ModifiedCount == 1, nil
}

func (r *EventRepository) DeleteOneByID(ID primitive.ObjectID) error {
	_, err := r.collection().DeleteOne(context.TODO(), bson.M{"_id": ID})
	return err
}
