package repository

import (
	"context"
	"errors"
	"time"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores one document per driver in the compliance_records
// collection, keyed by driver id. Writes are conditional on the version field.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Get(ctx context.Context, driverID string) (*compliance.Record, error) {
	var r compliance.Record
	err := m.col.FindOne(ctx, bson.M{"_id": driverID}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if r.Artifacts == nil {
		r.Artifacts = map[compliance.ArtifactType]compliance.Artifact{}
	}
	return &r, nil
}

func (m *MongoRepo) Save(ctx context.Context, rec *compliance.Record) error {
	now := time.Now().UTC()
	if rec.Version == 0 {
		doc := rec.Clone()
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now
		doc.Version = 1
		if _, err := m.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			return err
		}
		rec.CreatedAt, rec.UpdatedAt, rec.Version = doc.CreatedAt, doc.UpdatedAt, doc.Version
		return nil
	}

	filter := bson.M{"_id": rec.DriverID, "version": rec.Version}
	update := bson.M{"$set": bson.M{
		"artifacts": rec.Artifacts,
		"version":   rec.Version + 1,
		"updatedAt": now,
	}}
	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	rec.Version++
	rec.UpdatedAt = now
	return nil
}

type infoDoc[T any] struct {
	DriverID string `bson:"_id"`
	Value    T      `bson:"value"`
}

// MongoInfoStore keeps one informational record per driver in its own collection.
type MongoInfoStore[T any] struct {
	col *mongo.Collection
}

func NewMongoInfoStore[T any](col *mongo.Collection) *MongoInfoStore[T] {
	return &MongoInfoStore[T]{col: col}
}

func (m *MongoInfoStore[T]) Get(ctx context.Context, driverID string) (*T, error) {
	var d infoDoc[T]
	if err := m.col.FindOne(ctx, bson.M{"_id": driverID}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d.Value, nil
}

func (m *MongoInfoStore[T]) Put(ctx context.Context, driverID string, v T) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": driverID}, infoDoc[T]{DriverID: driverID, Value: v}, opts)
	return err
}

func (m *MongoInfoStore[T]) Delete(ctx context.Context, driverID string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": driverID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
