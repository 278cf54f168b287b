package bootstrap

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAdmin implements Admin with database commands on a live client.
type MongoAdmin struct {
	client *mongo.Client
}

func NewMongoAdmin(c *mongo.Client) *MongoAdmin { return &MongoAdmin{client: c} }

func (m *MongoAdmin) UserExists(ctx context.Context, db, username string) (bool, error) {
	var res struct {
		Users []bson.M `bson:"users"`
	}
	cmd := bson.D{{Key: "usersInfo", Value: username}}
	if err := m.client.Database(db).RunCommand(ctx, cmd).Decode(&res); err != nil {
		return false, err
	}
	return len(res.Users) > 0, nil
}

func (m *MongoAdmin) CreateUser(ctx context.Context, db string, a Account) error {
	roles := bson.A{}
	for _, r := range a.Roles {
		roles = append(roles, bson.D{{Key: "role", Value: r.Role}, {Key: "db", Value: r.DB}})
	}
	cmd := bson.D{
		{Key: "createUser", Value: a.Username},
		{Key: "pwd", Value: a.Password},
		{Key: "roles", Value: roles},
	}
	return m.client.Database(db).RunCommand(ctx, cmd).Err()
}

func (m *MongoAdmin) CollectionNames(ctx context.Context, db string) ([]string, error) {
	return m.client.Database(db).ListCollectionNames(ctx, bson.D{})
}

func (m *MongoAdmin) CreateCollection(ctx context.Context, db, name string) error {
	return m.client.Database(db).CreateCollection(ctx, name)
}
