package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	usersCollection    = "users"
	filesCollection    = "files"
	countersCollection = "counters"
)

// MongoClient is the MongoDB implementation of the metadata store.
// Numeric ids come from a counters collection so both drivers expose the
// same id space.
type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

type userDoc struct {
	ID        int64     `bson:"_id"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"created_at"`
}

type fileDoc struct {
	ID         int64     `bson:"_id"`
	UserID     int64     `bson:"userId"`
	Name       string    `bson:"name"`
	Type       string    `bson:"type"`
	IsPublic   bool      `bson:"isPublic"`
	ParentID   int64     `bson:"parentId"`
	StorageRef string    `bson:"localPath,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d fileDoc) toModel() *models.FileNode {
	return &models.FileNode{
		ID:         models.FileID(d.ID),
		OwnerID:    models.UserID(d.UserID),
		Name:       d.Name,
		Kind:       models.Kind(d.Type),
		Parent:     models.ParentFromStorage(d.ParentID),
		IsPublic:   d.IsPublic,
		StorageRef: d.StorageRef,
		CreatedAt:  d.CreatedAt,
	}
}

func fileDocFromModel(f *models.FileNode) fileDoc {
	return fileDoc{
		ID:         int64(f.ID),
		UserID:     int64(f.OwnerID),
		Name:       f.Name,
		Type:       string(f.Kind),
		IsPublic:   f.IsPublic,
		ParentID:   f.Parent.Storage(),
		StorageRef: f.StorageRef,
		CreatedAt:  f.CreatedAt,
	}
}

// NewMongoClient connects, pings and ensures indexes
func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ping := func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
	if err := pingWithRetry(ctx, ping); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mc := &MongoClient{client: client, db: client.Database(database), now: time.Now}
	if err := mc.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return mc, nil
}

func (mc *MongoClient) ensureIndexes(ctx context.Context) error {
	_, err := mc.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = mc.db.Collection(filesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "parentId", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create files index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (mc *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return mc.client.Disconnect(ctx)
}

// Ping checks the connection
func (mc *MongoClient) Ping(ctx context.Context) error {
	if err := mc.client.Ping(ctx, readpref.Primary()); err != nil {
		return unavailable("mongo ping", err)
	}
	return nil
}

// nextID atomically increments the named sequence
func (mc *MongoClient) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := mc.db.Collection(countersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).
		Decode(&counter)
	if err != nil {
		return 0, unavailable("next id", err)
	}
	return counter.Seq, nil
}

// CreateUser inserts a user and sets its id
func (mc *MongoClient) CreateUser(ctx context.Context, user *models.User) error {
	ctx, span := tracer.Start(ctx, "mongo.create_user")
	defer span.End()

	id, err := mc.nextID(ctx, usersCollection)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = mc.now().UTC()
	}

	doc := userDoc{ID: id, Email: user.Email, Password: user.HashedPassword, CreatedAt: user.CreatedAt}
	if _, err := mc.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrAlreadyExists
		}
		span.RecordError(err)
		return unavailable("insert user", err)
	}
	user.ID = models.UserID(id)

	span.SetAttributes(attribute.Int64("user_id", id))
	return nil
}

// GetUserByEmail returns common.ErrNotFound for unknown emails
func (mc *MongoClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "mongo.get_user_by_email")
	defer span.End()

	return mc.findUser(ctx, span, bson.M{"email": email})
}

// GetUser returns common.ErrNotFound for unknown ids
func (mc *MongoClient) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "mongo.get_user",
		trace.WithAttributes(attribute.Int64("user_id", int64(id))),
	)
	defer span.End()

	return mc.findUser(ctx, span, bson.M{"_id": int64(id)})
}

func (mc *MongoClient) findUser(ctx context.Context, span trace.Span, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := mc.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, common.ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, unavailable("find user", err)
	}
	return &models.User{
		ID:             models.UserID(doc.ID),
		Email:          doc.Email,
		HashedPassword: doc.Password,
		CreatedAt:      doc.CreatedAt,
	}, nil
}

// CountUsers returns the number of users
func (mc *MongoClient) CountUsers(ctx context.Context) (int64, error) {
	return mc.count(ctx, usersCollection)
}

// CountFiles returns the number of file nodes
func (mc *MongoClient) CountFiles(ctx context.Context) (int64, error) {
	return mc.count(ctx, filesCollection)
}

func (mc *MongoClient) count(ctx context.Context, collection string) (int64, error) {
	ctx, span := tracer.Start(ctx, "mongo.count_"+collection)
	defer span.End()

	n, err := mc.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		span.RecordError(err)
		return 0, unavailable("count "+collection, err)
	}
	return n, nil
}

// CreateFile inserts a file node and sets its id
func (mc *MongoClient) CreateFile(ctx context.Context, file *models.FileNode) error {
	ctx, span := tracer.Start(ctx, "mongo.create_file",
		trace.WithAttributes(
			attribute.String("file_name", file.Name),
			attribute.String("file_type", string(file.Kind)),
		),
	)
	defer span.End()

	id, err := mc.nextID(ctx, filesCollection)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = mc.now().UTC()
	}
	file.ID = models.FileID(id)

	if _, err := mc.db.Collection(filesCollection).InsertOne(ctx, fileDocFromModel(file)); err != nil {
		file.ID = 0
		span.RecordError(err)
		return unavailable("insert file", err)
	}

	span.SetAttributes(attribute.Int64("file_id", id))
	return nil
}

// GetFile retrieves a file node by id; common.ErrNotFound when absent
func (mc *MongoClient) GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "mongo.get_file",
		trace.WithAttributes(attribute.Int64("file_id", int64(id))),
	)
	defer span.End()

	var doc fileDoc
	err := mc.db.Collection(filesCollection).FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, common.ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, unavailable("find file", err)
	}
	return doc.toModel(), nil
}

// ListFiles returns the owner's nodes under parent in insertion order
func (mc *MongoClient) ListFiles(ctx context.Context, owner models.UserID, parent models.ParentRef, offset, limit int) ([]*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "mongo.list_files",
		trace.WithAttributes(
			attribute.Int64("user_id", int64(owner)),
			attribute.Int64("parent_id", parent.Storage()),
			attribute.Int("offset", offset),
		),
	)
	defer span.End()

	filter := bson.M{"userId": int64(owner), "parentId": parent.Storage()}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := mc.db.Collection(filesCollection).Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable("find files", err)
	}
	defer cursor.Close(ctx)

	var docs []fileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		span.RecordError(err)
		return nil, unavailable("decode files", err)
	}

	files := make([]*models.FileNode, 0, len(docs))
	for _, d := range docs {
		files = append(files, d.toModel())
	}

	span.SetAttributes(attribute.Int("file_count", len(files)))
	return files, nil
}

// SetFilePublic updates the visibility flag; last writer wins
func (mc *MongoClient) SetFilePublic(ctx context.Context, id models.FileID, public bool) error {
	ctx, span := tracer.Start(ctx, "mongo.set_file_public",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(id)),
			attribute.Bool("is_public", public),
		),
	)
	defer span.End()

	_, err := mc.db.Collection(filesCollection).
		UpdateOne(ctx, bson.M{"_id": int64(id)}, bson.M{"$set": bson.M{"isPublic": public}})
	if err != nil {
		span.RecordError(err)
		return unavailable("update file", err)
	}
	return nil
}
