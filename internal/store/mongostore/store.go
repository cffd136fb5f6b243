// Package mongostore stores users, projects and their content in MongoDB. Ids are
// the application's ULID strings, used directly as _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

const (
	colUsers    = "users"
	colProjects = "projects"
	colMembers  = "project_members"
	colTasks    = "tasks"
	colSubtasks = "subtasks"
	colNotes    = "notes"

	defaultTimeout = 5 * time.Second
)

type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

var (
	_ auth.UserStore   = (*Store)(nil)
	_ membership.Store = (*Store)(nil)
	_ project.Store    = (*Store)(nil)
)

// Open connects and pings the primary. timeout bounds the connect and every
// later operation.
func Open(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := options.Client().ApplyURI(uri).SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client, database, timeout), nil
}

// New wraps a connected client.
func New(client *mongo.Client, database string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{client: client, db: client.Database(database), timeout: timeout}
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// Ping is the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique and lookup indexes. It is safe to call on
// every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	caseInsensitive := &options.Collation{Locale: "en", Strength: 2}
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email_verification_hash", Value: 1}}},
			{Keys: bson.D{{Key: "password_reset_hash", Value: 1}}},
		},
		colProjects: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)},
		},
		colMembers: {
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		colTasks:    {{Keys: bson.D{{Key: "project_id", Value: 1}}}},
		colSubtasks: {{Keys: bson.D{{Key: "task_id", Value: 1}}}},
		colNotes:    {{Keys: bson.D{{Key: "project_id", Value: 1}}}},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// findOne decodes a single document, mapping no match to notFound.
func (s *Store) findOne(ctx context.Context, coll string, filter any, out any, notFound error) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	err := s.col(coll).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return err
}

// updateOne applies update to the single matching document; no match yields
// noMatch.
func (s *Store) updateOne(ctx context.Context, coll string, filter, update any, noMatch error) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.col(coll).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return noMatch
	}
	return nil
}

func (s *Store) deleteOne(ctx context.Context, coll string, filter any, noMatch error) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.col(coll).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return noMatch
	}
	return nil
}

func (s *Store) deleteMany(ctx context.Context, coll string, filter any) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.col(coll).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) insertOne(ctx context.Context, coll string, doc any, duplicate error) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.col(coll).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return duplicate
	}
	return err
}

// findAll decodes every match into out, a pointer to a slice.
func (s *Store) findAll(ctx context.Context, coll string, filter any, sort bson.D, out any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	cur, err := s.col(coll).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
