package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"estategate/service/gateway"
	"estategate/tools/ids"
)

// ConversationStore persists messages and answers participant checks
// against the marketplace's conversations collection. Conversation
// documents are owned by the REST side; the gateway only reads the
// participants array.
type ConversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationStore() (*ConversationStore, error) {
	if mdb == nil {
		return nil, errors.New("mongo not initialized")
	}
	return &ConversationStore{
		conversations: mdb.Collection("conversations"),
		messages:      mdb.Collection("messages"),
	}, nil
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation"`
	SenderID       string    `bson:"sender"`
	SenderName     string    `bson:"sender_name,omitempty"`
	Body           string    `bson:"content"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func (s *ConversationStore) IsParticipant(ctx context.Context, conversationID, identityID string) (bool, error) {
	filter := bson.M{"_id": conversationID, "participants": identityID}
	err := s.conversations.FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "participant lookup")
	}
	return true, nil
}

func (s *ConversationStore) SaveMessage(ctx context.Context, m gateway.Message) (gateway.Message, error) {
	m.ID = ids.GenerateString()
	m.CreatedAt = time.Now().UTC()

	doc := messageDoc{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return gateway.Message{}, errors.Wrap(err, "insert message")
	}
	return m, nil
}
