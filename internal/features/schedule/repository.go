package schedule

import (
	"context"
	"time"

	"go-learnerscript/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ScheduleRepository interface {
	Create(ctx context.Context, sch *Schedule) error
	GetByID(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context, filter map[string]interface{}) ([]Schedule, error)
	Update(ctx context.Context, sch *Schedule) error
	Delete(ctx context.Context, id string) error
	DeleteByReport(ctx context.Context, reportID string) error
	// FindDue returns schedules whose nextschedule has passed, excluding
	// on-demand schedules.
	FindDue(ctx context.Context, now int64) ([]Schedule, error)
	// MarkDelivered advances nextschedule in a single write.
	MarkDelivered(ctx context.Context, id primitive.ObjectID, next int64) error
}

type ScheduleRepositoryImpl struct {
	collection *mongo.Collection
}

func NewScheduleRepository(db *database.MongodbDB) ScheduleRepository {
	return &ScheduleRepositoryImpl{
		collection: db.DB.Collection("schedules"),
	}
}

func (r *ScheduleRepositoryImpl) Create(ctx context.Context, sch *Schedule) error {
	sch.ID = primitive.NewObjectID()
	sch.TimeCreated = time.Now().Unix()
	sch.TimeModified = sch.TimeCreated

	_, err := r.collection.InsertOne(ctx, sch)
	return err
}

func (r *ScheduleRepositoryImpl) GetByID(ctx context.Context, id string) (*Schedule, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var sch Schedule
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&sch)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &sch, nil
}

func (r *ScheduleRepositoryImpl) List(ctx context.Context, filter map[string]interface{}) ([]Schedule, error) {
	var schedules []Schedule

	opts := options.Find().SetSort(bson.D{{Key: "timecreated", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, err
	}
	if schedules == nil {
		schedules = []Schedule{}
	}
	return schedules, nil
}

func (r *ScheduleRepositoryImpl) Update(ctx context.Context, sch *Schedule) error {
	sch.TimeModified = time.Now().Unix()

	_, err := r.collection.UpdateByID(ctx, sch.ID, bson.M{"$set": sch})
	return err
}

func (r *ScheduleRepositoryImpl) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}

func (r *ScheduleRepositoryImpl) DeleteByReport(ctx context.Context, reportID string) error {
	objectID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteMany(ctx, bson.M{"reportid": objectID})
	return err
}

func (r *ScheduleRepositoryImpl) FindDue(ctx context.Context, now int64) ([]Schedule, error) {
	return r.List(ctx, map[string]interface{}{
		"frequency":    bson.M{"$ne": FrequencyOnDemand},
		"nextschedule": bson.M{"$gt": 0, "$lte": now},
	})
}

func (r *ScheduleRepositoryImpl) MarkDelivered(ctx context.Context, id primitive.ObjectID, next int64) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"nextschedule": next,
		"timemodified": time.Now().Unix(),
	}})
	return err
}
