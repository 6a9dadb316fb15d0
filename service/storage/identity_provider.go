package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"estategate/service/gateway"
)

// IdentityProvider resolves credential subjects against the users
// collection; only display fields are read.
type IdentityProvider struct {
	users *mongo.Collection
}

func NewIdentityProvider() (*IdentityProvider, error) {
	if mdb == nil {
		return nil, errors.New("mongo not initialized")
	}
	return &IdentityProvider{users: mdb.Collection("users")}, nil
}

type userDoc struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Avatar string `bson:"avatar,omitempty"`
	Role   string `bson:"role,omitempty"`
}

func (p *IdentityProvider) Lookup(ctx context.Context, identityID string) (gateway.Identity, error) {
	var doc userDoc
	err := p.users.FindOne(ctx, bson.M{"_id": identityID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return gateway.Identity{}, errors.New("user not found")
	}
	if err != nil {
		return gateway.Identity{}, errors.Wrap(err, "user lookup")
	}
	return gateway.Identity{ID: doc.ID, Name: doc.Name, Avatar: doc.Avatar, Role: doc.Role}, nil
}
