package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ponyo877/lounge/server/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// conversationDoc is stored in the conversations collection.
// db.conversations.createIndex({user_a: 1, user_b: 1}, {unique: true})
type conversationDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserA         string             `bson:"user_a"`
	UserB         string             `bson:"user_b"`
	LastMessage   string             `bson:"last_message"`
	LastMessageAt *time.Time         `bson:"last_message_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func (conversationDoc) Collection() string { return "conversations" }

func (d conversationDoc) toDomain() domain.Conversation {
	return domain.Conversation{
		ID:            d.ID.Hex(),
		Participants:  [2]string{d.UserA, d.UserB},
		LastMessage:   d.LastMessage,
		LastMessageAt: d.LastMessageAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// messageDoc is stored in the messages collection.
// db.messages.createIndex({conversation_id: 1, created_at: 1})
type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `bson:"conversation_id"`
	SenderID       string             `bson:"sender_id"`
	Content        string             `bson:"content"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"created_at"`
}

func (messageDoc) Collection() string { return "messages" }

func (d messageDoc) toDomain() domain.PersistedMessage {
	return domain.PersistedMessage{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID.Hex(),
		SenderID:       d.SenderID,
		Text:           d.Content,
		Status:         domain.MessageStatus(d.Status),
		CreatedAt:      d.CreatedAt,
	}
}

type MongoRepository struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
	now           func() time.Time
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoRepository, error) {
	if database == "" {
		database = "lounge"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo %s: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo %s: %w", uri, err)
	}
	repo := NewMongoRepository(client, client.Database(database))
	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func NewMongoRepository(client *mongo.Client, db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		client:        client,
		conversations: db.Collection(conversationDoc{}.Collection()),
		messages:      db.Collection(messageDoc{}.Collection()),
		now:           time.Now,
	}
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_a", Value: 1}, {Key: "user_b", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation index: %w", err)
	}
	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoRepository) FindOrCreateConversation(ctx context.Context, userA, userB string) (domain.Conversation, error) {
	pair := domain.SortedPair(userA, userB)
	now := r.now().UTC()
	filter := bson.M{"user_a": pair[0], "user_b": pair[1]}
	update := bson.M{"$setOnInsert": bson.M{
		"user_a":       pair[0],
		"user_b":       pair[1],
		"last_message": "",
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc conversationDoc
	if err := r.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to upsert conversation %s/%s: %w", pair[0], pair[1], err)
	}
	return doc.toDomain(), nil
}

func (r *MongoRepository) AppendPersistedMessage(ctx context.Context, conversationID, senderID, text string) (domain.PersistedMessage, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	now := r.now().UTC()

	res, err := r.conversations.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"last_message":    text,
		"last_message_at": now,
		"updated_at":      now,
	}})
	if err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to update conversation %s: %w", conversationID, err)
	}
	if res.MatchedCount == 0 {
		return domain.PersistedMessage{}, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	doc := messageDoc{
		ID:             primitive.NewObjectID(),
		ConversationID: oid,
		SenderID:       senderID,
		Content:        text,
		Status:         string(domain.MessageStatusSent),
		CreatedAt:      now,
	}
	if _, err := r.messages.InsertOne(ctx, doc); err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to insert message for conversation %s: %w", conversationID, err)
	}
	return doc.toDomain(), nil
}

func (r *MongoRepository) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	filter := bson.M{"$or": bson.A{bson.M{"user_a": userID}, bson.M{"user_b": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations for %s: %w", userID, err)
	}
	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error iterating over conversations for %s: %w", userID, err)
	}
	conversations := make([]domain.Conversation, 0, len(docs))
	for _, d := range docs {
		conversations = append(conversations, d.toDomain())
	}
	return conversations, nil
}

func (r *MongoRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.PersistedMessage, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return []domain.PersistedMessage{}, nil
	}
	return r.findMessages(ctx, conversationID, bson.M{"conversation_id": oid})
}

func (r *MongoRepository) SearchMessages(ctx context.Context, conversationID, pattern string) ([]domain.PersistedMessage, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
	}
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return []domain.PersistedMessage{}, nil
	}
	return r.findMessages(ctx, conversationID, bson.M{
		"conversation_id": oid,
		"content":         primitive.Regex{Pattern: pattern},
	})
}

func (r *MongoRepository) findMessages(ctx context.Context, conversationID string, filter bson.M) ([]domain.PersistedMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for conversation %s: %w", conversationID, err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error iterating over messages for conversation %s: %w", conversationID, err)
	}
	messages := make([]domain.PersistedMessage, 0, len(docs))
	for _, d := range docs {
		messages = append(messages, d.toDomain())
	}
	return messages, nil
}
