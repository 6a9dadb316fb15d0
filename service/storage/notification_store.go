package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"estategate/service/gateway"
)

type NotificationStore struct {
	notifications *mongo.Collection
}

func NewNotificationStore() (*NotificationStore, error) {
	if mdb == nil {
		return nil, errors.New("mongo not initialized")
	}
	return &NotificationStore{notifications: mdb.Collection("notifications")}, nil
}

type notificationDoc struct {
	ID         string    `bson:"_id"`
	IdentityID string    `bson:"user"`
	Kind       string    `bson:"kind,omitempty"`
	Title      string    `bson:"title,omitempty"`
	Body       string    `bson:"body"`
	CreatedAt  time.Time `bson:"createdAt"`
}

func (s *NotificationStore) SaveNotification(ctx context.Context, n gateway.Notification) (gateway.Notification, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()

	doc := notificationDoc{
		ID:         n.ID,
		IdentityID: n.IdentityID,
		Kind:       n.Kind,
		Title:      n.Title,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt,
	}
	if _, err := s.notifications.InsertOne(ctx, doc); err != nil {
		return gateway.Notification{}, errors.Wrap(err, "insert notification")
	}
	return n, nil
}
