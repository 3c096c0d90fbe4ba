package eventstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

const (
	mongoEventsColl = "events"
	mongoFlagsColl  = "channel_flags"
)

type mongoEdit struct {
	At      time.Time `bson:"at"`
	Content string    `bson:"content"`
}

type mongoEvent struct {
	ID        string             `bson:"_id"`
	Seq       primitive.ObjectID `bson:"seq"`
	GuildID   string             `bson:"guild_id"`
	ChannelID string             `bson:"channel_id"`
	AuthorID  string             `bson:"author_id"`
	AuthorBot bool               `bson:"author_bot"`
	CreatedAt time.Time          `bson:"created_at"`
	Content   string             `bson:"content"`
	Embed     string             `bson:"embed,omitempty"`
	Deleted   bool               `bson:"deleted"`
	Edits     []mongoEdit        `bson:"edits,omitempty"`
}

func (m mongoEvent) event() Event {
	e := Event{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.AuthorID,
		AuthorBot: m.AuthorBot,
		CreatedAt: m.CreatedAt.UTC(),
		Content:   m.Content,
		Embed:     m.Embed,
		Deleted:   m.Deleted,
	}
	for _, ed := range m.Edits {
		e.Edits = append(e.Edits, Edit{At: ed.At.UTC(), Content: ed.Content})
	}
	return e
}

// MongoStore keeps events as documents with embedded edit history.
type MongoStore struct {
	client *mongo.Client
	events *mongo.Collection
	flags  *mongo.Collection
}

// OpenMongo connects to uri and uses database dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := NewMongoStore(client, client.Database(dbName))
	if err := s.EnsureIndexes(ctx); err != nil {
		obslog.L().Warn("eventstore_mongo_index_error", zap.Error(err))
	}
	obslog.L().Info("eventstore_mongo_open", zap.String("database", dbName))
	return s, nil
}

// NewMongoStore wraps an existing database handle. client may be nil when the
// caller owns the connection.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, events: db.Collection(mongoEventsColl), flags: db.Collection(mongoFlagsColl)}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "author_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.flags.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "guild_id", Value: 1}}})
	return err
}

func (s *MongoStore) Append(ctx context.Context, e Event) error {
	e, err := normalize(e)
	if err != nil {
		return err
	}
	doc := mongoEvent{
		ID:        e.ID,
		Seq:       primitive.NewObjectID(),
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		AuthorID:  e.AuthorID,
		AuthorBot: e.AuthorBot,
		CreatedAt: e.CreatedAt,
		Content:   e.Content,
		Embed:     e.Embed,
	}
	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *MongoStore) MarkDeleted(ctx context.Context, id string) error {
	res, err := s.events.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *MongoStore) AppendEdit(ctx context.Context, id string, at time.Time, content string) error {
	edit := mongoEdit{At: at.UTC().Truncate(time.Millisecond), Content: content}
	res, err := s.events.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"edits": edit}})
	if err != nil {
		return fmt.Errorf("append edit: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Event, error) {
	var doc mongoEvent
	if err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	e := doc.event()
	return &e, nil
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}).
		SetProjection(bson.M{"edits": 0})
	cur, err := s.events.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	var docs []mongoEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.event())
	}
	return out, nil
}

func mongoFilter(q Query) bson.M {
	f := bson.M{
		"guild_id":   q.GuildID,
		"deleted":    false,
		"author_bot": false,
	}
	created := bson.M{}
	if !q.From.IsZero() {
		created["$gt"] = q.From.UTC()
	}
	if !q.To.IsZero() {
		created["$lte"] = q.To.UTC()
	}
	if len(created) > 0 {
		f["created_at"] = created
	}
	if q.AuthorID != "" {
		f["author_id"] = q.AuthorID
	}
	if len(q.ExcludeChannels) > 0 {
		f["channel_id"] = bson.M{"$nin": q.ExcludeChannels}
	}
	return f
}

func (s *MongoStore) SetChannelExcluded(ctx context.Context, guildID, channelID string, excluded bool) error {
	_, err := s.flags.UpdateOne(ctx,
		bson.M{"_id": guildID + ":" + channelID},
		bson.M{"$set": bson.M{"guild_id": guildID, "channel_id": channelID, "excluded": excluded, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) ExcludedChannels(ctx context.Context, guildID string) ([]string, error) {
	cur, err := s.flags.Find(ctx, bson.M{"guild_id": guildID, "excluded": true})
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ChannelID string `bson:"channel_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ChannelID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MongoStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
