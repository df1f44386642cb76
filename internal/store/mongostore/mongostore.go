// Package mongostore keeps the catalog in MongoDB.  Each record type has its own collection
// with a unique index on its business key (author name, book title, username).
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names
const (
	AuthorCollection = "authors"
	BookCollection   = "books"
	UserCollection   = "users"
)

// Store implements store.Store using a MongoDB database
type Store struct {
	client  *mongo.Client
	owned   bool // client was created by Connect so is disconnected by Close
	authors *mongo.Collection
	books   *mongo.Collection
	users   *mongo.Collection
	log     *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Connect opens a client for the URI, checks that the server is reachable and makes sure the
// unique indexes exist
func Connect(ctx context.Context, uri, database string, timeout time.Duration, log *zap.Logger) (*Store, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w connecting to MongoDB", err)
	}
	s := New(client.Database(database), log)
	s.owned = true
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w pinging MongoDB", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.log.Info("connected to MongoDB", zap.String("database", database))
	return s, nil
}

// New uses an already connected database (the caller is responsible for disconnecting)
func New(db *mongo.Database, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client:  db.Client(),
		authors: db.Collection(AuthorCollection),
		books:   db.Collection(BookCollection),
		users:   db.Collection(UserCollection),
		log:     log,
	}
}

// EnsureIndexes creates the unique indexes (if they do not already exist)
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, ix := range []struct {
		coll *mongo.Collection
		key  string
	}{
		{s.authors, "name"},
		{s.books, "title"},
		{s.users, "username"},
	} {
		_, err := ix.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: ix.key, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("%w creating index on %s.%s", err, ix.coll.Name(), ix.key)
		}
	}
	return nil
}

func (s *Store) AuthorCount(ctx context.Context) (int, error) {
	n, err := s.authors.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%w counting authors", err)
	}
	return int(n), nil
}

func (s *Store) BookCount(ctx context.Context) (int, error) {
	n, err := s.books.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%w counting books", err)
	}
	return int(n), nil
}

func (s *Store) Authors(ctx context.Context) ([]model.Author, error) {
	cursor, err := s.authors.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w finding authors", err)
	}
	var docs []authorDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w reading authors", err)
	}
	r := make([]model.Author, len(docs))
	for i, d := range docs {
		r[i] = d.model()
	}
	return r, nil
}

// withAuthor is the part of a pipeline that populates a book's author
var withAuthor = mongo.Pipeline{
	{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: AuthorCollection},
		{Key: "localField", Value: "author"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "authorDoc"},
	}}},
	{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$authorDoc"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}},
}

func (s *Store) Books(ctx context.Context) ([]model.Book, error) {
	pipeline := append(mongo.Pipeline{{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}}}, withAuthor...)
	return s.findBooks(ctx, pipeline)
}

func (s *Store) Book(ctx context.Context, id string) (*model.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: book %q", store.ErrNotFound, id)
	}
	pipeline := append(mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "_id", Value: oid}}}}}, withAuthor...)
	books, err := s.findBooks(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: book %q", store.ErrNotFound, id)
	}
	return &books[0], nil
}

func (s *Store) findBooks(ctx context.Context, pipeline mongo.Pipeline) ([]model.Book, error) {
	cursor, err := s.books.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w finding books", err)
	}
	var docs []bookDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w reading books", err)
	}
	r := make([]model.Book, len(docs))
	for i, d := range docs {
		r[i] = d.model()
	}
	return r, nil
}

func (s *Store) BookCounts(ctx context.Context) (map[string]int, error) {
	cursor, err := s.books.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w counting books by author", err)
	}
	var rows []struct {
		Author primitive.ObjectID `bson:"_id"`
		Count  int                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("%w reading book counts", err)
	}
	r := make(map[string]int, len(rows))
	for _, row := range rows {
		r[row.Author.Hex()] = row.Count
	}
	return r, nil
}

// EnsureAuthor upserts on the unique name.  Two concurrent upserts of a new name can both
// try to insert, in which case the loser gets a duplicate key error and is retried once
// (when it will find the winner's document).
func (s *Store) EnsureAuthor(ctx context.Context, name string) (*model.Author, error) {
	if err := (model.Author{Name: name}).Validate(); err != nil {
		return nil, err
	}
	filter := bson.D{{Key: "name", Value: name}}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "name", Value: name}}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc authorDoc
	err := s.authors.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		s.log.Debug("retrying author upsert", zap.String("name", name))
		err = s.authors.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, s.wrap(err, "author", name)
	}
	r := doc.model()
	return &r, nil
}

func (s *Store) SetAuthorBorn(ctx context.Context, name string, born int) (*model.Author, error) {
	var doc authorDoc
	err := s.authors.FindOneAndUpdate(ctx,
		bson.D{{Key: "name", Value: name}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "born", Value: born}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, s.wrap(err, "author", name)
	}
	r := doc.model()
	return &r, nil
}

// AddBook inserts the book.  The author reference is not checked - the caller obtains it
// from EnsureAuthor.
func (s *Store) AddBook(ctx context.Context, book model.Book) (*model.Book, error) {
	if err := book.Validate(); err != nil {
		return nil, err
	}
	authorID, err := primitive.ObjectIDFromHex(book.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("%w: author %q", store.ErrNotFound, book.AuthorID)
	}
	doc := bookDoc{
		Title:     book.Title,
		Author:    authorID,
		Published: book.Published,
		Genres:    book.Genres,
	}
	if doc.Genres == nil {
		doc.Genres = []string{}
	}
	res, err := s.books.InsertOne(ctx, doc)
	if err != nil {
		return nil, s.wrap(err, "book title", book.Title)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	r := doc.model()
	return &r, nil
}

func (s *Store) AddUser(ctx context.Context, user model.User) (*model.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	doc := userDoc{Username: user.Username, FavoriteGenre: user.FavoriteGenre, PasswordHash: user.PasswordHash}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		return nil, s.wrap(err, "username", user.Username)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	r := doc.model()
	return &r, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: user %q", store.ErrNotFound, id)
	}
	return s.findUser(ctx, bson.D{{Key: "_id", Value: oid}}, id)
}

func (s *Store) UserByName(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}}, username)
}

func (s *Store) findUser(ctx context.Context, filter bson.D, key string) (*model.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, s.wrap(err, "user", key)
	}
	r := doc.model()
	return &r, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// wrap converts driver errors to the store's sentinel errors
func (s *Store) wrap(err error, what, key string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %s %q", store.ErrNotFound, what, key)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s %q", store.ErrDuplicate, what, key)
	}
	s.log.Warn("MongoDB operation failed", zap.String(what, key), zap.Error(err))
	return fmt.Errorf("%w (%s %q)", err, what, key)
}
