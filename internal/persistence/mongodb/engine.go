package mongodb

import (
	"context"
	"slices"
	"time"

	"github.com/goevery/relay/internal/persistence"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Message struct {
	Id         bson.ObjectID `bson:"_id"`
	SenderId   string        `bson:"senderId"`
	ReceiverId string        `bson:"receiverId"`
	Content    string        `bson:"content"`
	Type       string        `bson:"type"`
	Timestamp  int64         `bson:"timestamp"`
	Read       bool          `bson:"read"`
	FileName   string        `bson:"fileName,omitempty"`
	FileSize   string        `bson:"fileSize,omitempty"`
	MimeType   string        `bson:"mimeType,omitempty"`
}

func (m Message) toMessage() persistence.Message {
	return persistence.Message{
		Id:         m.Id.Hex(),
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Content:    m.Content,
		Type:       persistence.MessageType(m.Type),
		Timestamp:  m.Timestamp,
		Read:       m.Read,
		FileName:   m.FileName,
		FileSize:   m.FileSize,
		MimeType:   m.MimeType,
	}
}

type PersistenceEngine struct {
	collection *mongo.Collection
}

func NewPersistenceEngine(client *mongo.Client, databaseName string) *PersistenceEngine {
	database := client.Database(databaseName)
	collection := database.Collection("messages")

	return &PersistenceEngine{
		collection,
	}
}

func (e *PersistenceEngine) Setup(ctx context.Context) error {
	conversationIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "senderId", Value: 1},
			{Key: "receiverId", Value: 1},
			{Key: "timestamp", Value: -1},
		},
	}

	unreadIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "receiverId", Value: 1},
			{Key: "read", Value: 1},
		},
	}

	_, err := e.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{conversationIndexModel, unreadIndexModel})

	return err
}

func (e *PersistenceEngine) Save(ctx context.Context, request persistence.SaveRequest) (persistence.Message, error) {
	message := Message{
		Id:         bson.NewObjectID(),
		SenderId:   request.SenderId,
		ReceiverId: request.ReceiverId,
		Content:    request.Content,
		Type:       string(request.Type),
		Timestamp:  time.Now().UnixMilli(),
		FileName:   request.FileName,
		FileSize:   request.FileSize,
		MimeType:   request.MimeType,
	}

	_, err := e.collection.InsertOne(ctx, message)
	if err != nil {
		return persistence.Message{}, err
	}

	return message.toMessage(), nil
}

func (e *PersistenceEngine) Conversation(ctx context.Context, userId string, otherUserId string, limit int64) ([]persistence.Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"senderId": userId, "receiverId": otherUserId},
			bson.M{"senderId": otherUserId, "receiverId": userId},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	result, err := e.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var mongoMessages []Message
	err = result.All(ctx, &mongoMessages)
	if err != nil {
		return nil, err
	}

	messages := make([]persistence.Message, len(mongoMessages))
	for i, m := range mongoMessages {
		messages[i] = m.toMessage()
	}

	slices.Reverse(messages)

	return messages, nil
}

func (e *PersistenceEngine) MarkConversationRead(ctx context.Context, readerId string, otherUserId string) (int64, error) {
	filter := bson.M{
		"senderId":   otherUserId,
		"receiverId": readerId,
		"read":       false,
	}

	result, err := e.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (e *PersistenceEngine) UnreadCount(ctx context.Context, userId string) (int64, error) {
	return e.collection.CountDocuments(ctx, bson.M{
		"receiverId": userId,
		"read":       false,
	})
}
