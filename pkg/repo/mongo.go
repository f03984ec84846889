package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by Get/Update when no document matches the id.
var ErrNotFound = errors.New("repo: not found")

// MongoRepo is a generic MongoDB-backed repository. idField names the
// document field used as the entity's ID (typically "_id").
type MongoRepo[T any, ID comparable] struct {
	coll    *mongo.Collection
	idField string
}

// NewMongoRepo creates a new MongoDB-backed repository over coll.
func NewMongoRepo[T any, ID comparable](coll *mongo.Collection, idField string) *MongoRepo[T, ID] {
	if idField == "" {
		idField = "_id"
	}
	return &MongoRepo[T, ID]{coll: coll, idField: idField}
}

// Compile-time interface check.
var _ Repository[any, string] = (*MongoRepo[any, string])(nil)

func (r *MongoRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	var out T
	err := r.coll.FindOne(ctx, bson.M{r.idField: id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("repo: get: %w", err)
	}
	return out, nil
}

func (r *MongoRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := int64(opts.Limit)
	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{}
	for k, v := range opts.Filter {
		filter[k] = v
	}

	findOpts := options.Find().SetSkip(int64(opts.Offset)).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("repo: list: %w", err)
	}
	defer cur.Close(ctx)

	var items []T
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("repo: list decode: %w", err)
	}
	return items, nil
}

func (r *MongoRepo[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	res, err := r.coll.InsertOne(ctx, entity)
	if err != nil {
		return zero, fmt.Errorf("repo: create: %w", err)
	}
	var id ID
	if oid, ok := res.InsertedID.(ID); ok {
		id = oid
	} else {
		return entity, nil
	}
	return r.Get(ctx, id)
}

func (r *MongoRepo[T, ID]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	doc, err := toBSONMap(entity)
	if err != nil {
		return zero, fmt.Errorf("repo: update encode: %w", err)
	}
	id, ok := doc[r.idField]
	if !ok {
		return zero, fmt.Errorf("repo: update: entity missing %s field", r.idField)
	}
	delete(doc, r.idField)

	res := r.coll.FindOneAndUpdate(ctx, bson.M{r.idField: id}, bson.M{"$set": doc},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var out T
	if err := res.Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("repo: update: %w", err)
	}
	return out, nil
}

func (r *MongoRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{r.idField: id})
	if err != nil {
		return fmt.Errorf("repo: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// toBSONMap round-trips entity through bson marshaling to get a generic map,
// used by Update to build a $set document without clobbering unset fields.
func toBSONMap(entity any) (bson.M, error) {
	data, err := bson.Marshal(entity)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
