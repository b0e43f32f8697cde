// Package archive stores companion chat transcripts in MongoDB. Documents
// expire through a TTL index on expires_at.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultDatabase = "ganggpt"
	collectionName  = "transcripts"
)

// Transcript is one companion exchange.
type Transcript struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlayerID         int64              `bson:"player_id" json:"player_id"`
	CompanionID      int64              `bson:"companion_id" json:"companion_id"`
	Companion        string             `bson:"companion" json:"companion"`
	Message          string             `bson:"message" json:"message"`
	Reply            string             `bson:"reply" json:"reply"`
	PromptTokens     int                `bson:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int                `bson:"completion_tokens" json:"completion_tokens"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt        time.Time          `bson:"expires_at" json:"expires_at"`
}

type Archive struct {
	client *mongo.Client
	coll   *mongo.Collection
	ttl    time.Duration
}

// Connect opens the client named by uri, pings it and makes sure the TTL
// index exists. The database is taken from the uri path.
func Connect(ctx context.Context, uri string, ttl time.Duration) (*Archive, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("archive: parse uri: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		dbName = defaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	a := &Archive{
		client: client,
		coll:   client.Database(dbName).Collection(collectionName),
		ttl:    ttl,
	}
	if err := a.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.M{"expires_at": 1},
			Options: options.Index().SetExpireAfterSeconds(0), // expire at the stored time
		},
		{
			Keys: bson.D{{Key: "player_id", Value: 1}, {Key: "companion_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("archive: create indexes: %w", err)
	}
	return nil
}

func (a *Archive) Save(ctx context.Context, t *Transcript) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = t.CreatedAt.Add(a.ttl)
	}

	res, err := a.coll.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("archive: insert transcript: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = id
	}
	return nil
}

func (a *Archive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
