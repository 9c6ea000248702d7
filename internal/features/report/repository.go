package report

import (
	"context"
	"time"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReportRepository interface {
	Create(ctx context.Context, report *common_models.Report) error
	GetByID(ctx context.Context, id string) (*common_models.Report, error)
	List(ctx context.Context, filter map[string]interface{}) ([]common_models.Report, error)
	Update(ctx context.Context, report *common_models.Report) error
	// UpdateComponents replaces the components blob in one write so concurrent
	// element edits never interleave partial trees.
	UpdateComponents(ctx context.Context, id string, blob string) error
	Delete(ctx context.Context, id string) error
}

type ReportRepositoryImpl struct {
	collection *mongo.Collection
}

func NewReportRepository(db *database.MongodbDB) ReportRepository {
	return &ReportRepositoryImpl{
		collection: db.DB.Collection("reports"),
	}
}

func (r *ReportRepositoryImpl) Create(ctx context.Context, report *common_models.Report) error {
	report.ID = primitive.NewObjectID()
	report.CreatedAt = time.Now()
	report.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, report)
	return err
}

func (r *ReportRepositoryImpl) GetByID(ctx context.Context, id string) (*common_models.Report, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var report common_models.Report
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepositoryImpl) List(ctx context.Context, filter map[string]interface{}) ([]common_models.Report, error) {
	var reports []common_models.Report

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []common_models.Report{}
	}
	return reports, nil
}

func (r *ReportRepositoryImpl) Update(ctx context.Context, report *common_models.Report) error {
	report.UpdatedAt = time.Now()

	_, err := r.collection.UpdateByID(ctx, report.ID, bson.M{"$set": report})
	return err
}

func (r *ReportRepositoryImpl) UpdateComponents(ctx context.Context, id string, blob string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateByID(ctx, objectID, bson.M{"$set": bson.M{
		"components": blob,
		"updated_at": time.Now(),
	}})
	return err
}

func (r *ReportRepositoryImpl) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
