package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/developia-II/feedback-board-backend/internal/database"
	"github.com/developia-II/feedback-board-backend/internal/keyset"
	"github.com/developia-II/feedback-board-backend/internal/models"
)

var bsonFields = map[keyset.Field]string{
	keyset.FieldEventID:   "eventId",
	keyset.FieldRating:    "rating",
	keyset.FieldCreatedAt: "createdAt",
	keyset.FieldID:        "_id",
}

// lowerBSON translates a predicate into a MongoDB filter document. Trivially
// true terms are dropped because $and rejects an empty array.
func lowerBSON(p keyset.Predicate) bson.D {
	switch p := p.(type) {
	case keyset.Equals:
		return bson.D{{Key: bsonFields[p.Field], Value: p.Value}}
	case keyset.LessThan:
		return bson.D{{Key: bsonFields[p.Field], Value: bson.D{{Key: "$lt", Value: p.Value}}}}
	case keyset.And:
		terms := bson.A{}
		for _, term := range p {
			if keyset.IsTrue(term) {
				continue
			}
			terms = append(terms, lowerBSON(term))
		}
		switch len(terms) {
		case 0:
			return bson.D{}
		case 1:
			return terms[0].(bson.D)
		}
		return bson.D{{Key: "$and", Value: terms}}
	case keyset.Or:
		if len(p) == 0 {
			return bson.D{{Key: "$expr", Value: false}}
		}
		terms := bson.A{}
		for _, term := range p {
			terms = append(terms, lowerBSON(term))
		}
		return bson.D{{Key: "$or", Value: terms}}
	}
	panic(fmt.Sprintf("repository: unknown predicate %T", p))
}

func lowerBSONSort(order []keyset.Order) bson.D {
	sort := bson.D{}
	for _, o := range order {
		dir := 1
		if o.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: bsonFields[o.Field], Value: dir})
	}
	return sort
}

// Mongo stores events and feedbacks in two collections; event names are
// joined at read time.
type Mongo struct {
	events    *mongo.Collection
	feedbacks *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		events:    db.Collection(database.EventsCollection),
		feedbacks: db.Collection(database.FeedbacksCollection),
	}
}

// MongoStore wraps m as a Store that disconnects the shared client.
func MongoStore(m *Mongo) Store {
	return Store{Feedbacks: m, Events: m, Close: database.Disconnect}
}

func (m *Mongo) List(ctx context.Context, params ListParams) (ListResult, error) {
	q, err := buildQuery(params)
	if err != nil {
		return ListResult{}, err
	}

	findOpts := options.Find().
		SetSort(lowerBSONSort(q.OrderBy)).
		SetLimit(int64(q.Take))

	cur, err := m.feedbacks.Find(ctx, lowerBSON(q.Where), findOpts)
	if err != nil {
		return ListResult{}, fmt.Errorf("find feedbacks: %w", err)
	}
	defer cur.Close(ctx)

	var rows []models.Feedback
	if err := cur.All(ctx, &rows); err != nil {
		return ListResult{}, fmt.Errorf("decode feedbacks: %w", err)
	}
	if err := m.joinEventNames(ctx, rows); err != nil {
		return ListResult{}, err
	}
	for i := range rows {
		rows[i].CreatedAt = rows[i].CreatedAt.UTC()
	}
	return page(rows, params)
}

func (m *Mongo) joinEventNames(ctx context.Context, rows []models.Feedback) error {
	if len(rows) == 0 {
		return nil
	}
	seen := map[string]bool{}
	ids := bson.A{}
	for _, r := range rows {
		if !seen[r.EventID] {
			seen[r.EventID] = true
			ids = append(ids, r.EventID)
		}
	}

	cur, err := m.events.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)

	var events []models.Event
	if err := cur.All(ctx, &events); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}
	names := make(map[string]string, len(events))
	for _, e := range events {
		names[e.ID] = e.Name
	}
	for i := range rows {
		rows[i].EventName = names[rows[i].EventID]
	}
	return nil
}

func (m *Mongo) Create(ctx context.Context, data NewFeedback) (models.Feedback, error) {
	name, err := m.GetNameByID(ctx, data.EventID)
	if err != nil {
		return models.Feedback{}, err
	}

	f := models.Feedback{
		ID:        uuid.NewString(),
		EventID:   data.EventID,
		Rating:    data.Rating,
		Text:      data.Text,
		CreatedAt: createdAtOrNow(data.CreatedAt),
	}
	if _, err := m.feedbacks.InsertOne(ctx, f); err != nil {
		return models.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	f.EventName = name
	return f, nil
}

func (m *Mongo) ListAll(ctx context.Context) ([]models.Event, error) {
	cur, err := m.events.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)

	events := []models.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

func (m *Mongo) GetNameByID(ctx context.Context, id string) (string, error) {
	var e models.Event
	err := m.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find event: %w", err)
	}
	return e.Name, nil
}

func (m *Mongo) EnsureEvent(ctx context.Context, name string) (models.Event, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{"_id": uuid.NewString()}}

	var e models.Event
	if err := m.events.FindOneAndUpdate(ctx, bson.M{"name": name}, update, opts).Decode(&e); err != nil {
		return models.Event{}, fmt.Errorf("ensure event: %w", err)
	}
	return e, nil
}
