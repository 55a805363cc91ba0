package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/entity"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository struct {
	mongoClient  *mongo.Client
	databaseName string
}

func NewUserRepository(mongoClient *mongo.Client, databaseName string) *UserRepository {
	return &UserRepository{
		mongoClient:  mongoClient,
		databaseName: databaseName,
	}
}

func (r *UserRepository) collection() *mongo.Collection {
	return r.mongoClient.Database(r.databaseName).Collection("users")
}

func (r *UserRepository) FindOneByID(ID primitive.ObjectID) (*entity.User, error) {
	return r.findOne(bson.M{"_id": ID})
}

func (r *UserRepository) FindOneByEmail(email string) (*entity.User, error) {
	return r.findOne(bson.M{"email": email})
}

func (r *UserRepository) findOne(m bson.M) (*entity.User, error) {
	var user entity.User
	err := r.collection().FindOne(context.TODO(), m).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) InsertOne(user entity.User) (*entity.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.EventsCreated == nil {
		user.EventsCreated = []primitive.ObjectID{}
	}
	if user.EventsAttending == nil {
		user.EventsAttending = []primitive.ObjectID{}
	}

	_, err := r.collection().InsertOne(context.TODO(), user)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) PushEventCreated(userID, eventID primitive.ObjectID) error {
	return r.updateRefs(bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"eventsCreated": eventID},
	})
}

func (r *UserRepository) PullEventCreated(userID, eventID primitive.ObjectID) error {
	return r.updateRefs(bson.M{"_id": userID}, bson.M{
		"$pull": bson.M{"eventsCreated": eventID},
	})
}

func (r *UserRepository) PushEventAttending(userID, eventID primitive.ObjectID) error {
	return r.updateRefs(bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"eventsAttending": eventID},
	})
}

func (r *UserRepository) PullEventAttending(userID, eventID primitive.ObjectID) error {
	return r.updateRefs(bson.M{"_id": userID}, bson.M{
		"$pull": bson.M{"eventsAttending": eventID},
	})
}

// PullEventFromAll removes the event reference from every user still
// holding it. Safe to re-run; users without the reference match nothing.
func (r *UserRepository) PullEventFromAll(eventID primitive.ObjectID) error {
	_, err := r.collection().UpdateMany(
		context.TODO(),
		bson.M{"eventsAttending": eventID},
		bson.M{
			"$pull": bson.M{"eventsAttending": eventID},
			"$currentDate": bson.M{
				"updatedAt": true,
			},
		},
	)
	return err
}

func (r *UserRepository) updateRefs(filter, update bson.M) error {
	update["$currentDate"] = bson.M{"updatedAt": true}
	_, err := r.collection().UpdateOne(context.TODO(), filter, update)
	return err
}

func (r *UserRepository) FindExpiredGuests(now time.Time) ([]*entity.User, error) {
	cur, err := r.collection().Find(context.TODO(), bson.M{
		"isGuest": true,
		"guestExpiryDate": bson.M{
			"$lte": now,
		},
	})
	if err != nil {
		return nil, err
	}

	var users []*entity.User
	err = cur.All(context.TODO(), &users)
	return users, err
}

func (r *UserRepository) DeleteManyByIDs(IDs []primitive.ObjectID) error {
	_, err := r.collection().DeleteMany(context.TODO(), bson.M{
		"_id": bson.M{
			"$in": IDs,
		},
	})
	return err
}
