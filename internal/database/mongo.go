package database

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ammar1510/clientdesk/internal/models"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
)

// MongoDB is the document store implementation. Messages and users live in
// their own collections; conversations are never stored.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	users    *mongo.Collection
	messages *mongo.Collection
}

func NewMongoDB(ctx context.Context, uri, databaseName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongodb")
	}

	database := client.Database(databaseName)
	db := &MongoDB{
		Client:   client,
		Database: database,
		users:    database.Collection(usersCollection),
		messages: database.Collection(messagesCollection),
	}

	if err := db.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return db, nil
}

// EnsureIndexes creates the indexes the queries below rely on
func (db *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "mongo.EnsureIndexes.users")
	}

	_, err = db.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return errors.Wrap(err, "mongo.EnsureIndexes.messages")
}

func (db *MongoDB) CreateUser(ctx context.Context, user *models.User) error {
	doc := *user
	doc.Email = strings.ToLower(user.Email)

	_, err := db.users.InsertOne(ctx, &doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrUserAlreadyExists
	}
	return errors.Wrap(err, "mongo.CreateUser")
}

func (db *MongoDB) findUser(ctx context.Context, filter bson.M, op string) (*models.User, error) {
	var user models.User
	err := db.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &user, nil
}

func (db *MongoDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(ctx, bson.M{"email": strings.ToLower(email)}, "mongo.GetUserByEmail")
}

func (db *MongoDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.findUser(ctx, bson.M{"_id": id}, "mongo.GetUserByID")
}

func (db *MongoDB) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := db.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "mongo.GetUsersByIDs")
	}

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "mongo.GetUsersByIDs.Decode")
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (db *MongoDB) GetUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := db.users.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo.GetUsersByRole")
	}

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "mongo.GetUsersByRole.Decode")
	}
	return users, nil
}

func (db *MongoDB) UpdateLastSeen(ctx context.Context, userID string) error {
	result, err := db.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"lastSeen": time.Now().UTC()}},
	)
	if err != nil {
		return errors.Wrap(err, "mongo.UpdateLastSeen")
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (db *MongoDB) InsertMessage(ctx context.Context, msg *models.Message) error {
	_, err := db.messages.InsertOne(ctx, msg)
	return errors.Wrap(err, "mongo.InsertMessage")
}

func (db *MongoDB) GetConversationMessages(ctx context.Context, conversationID string, skip, limit int64) ([]*models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := db.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo.GetConversationMessages")
	}

	messages := []*models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, errors.Wrap(err, "mongo.GetConversationMessages.Decode")
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// readFilterDoc builds the UpdateMany filter for f
func readFilterDoc(f ReadFilter) bson.M {
	filter := bson.M{
		"receiverId": f.ReaderID,
		"read":       false,
	}
	if f.ConversationID != "" {
		filter["conversationId"] = f.ConversationID
	}
	if len(f.MessageIDs) > 0 {
		filter["_id"] = bson.M{"$in": f.MessageIDs}
	}
	if f.Before != nil {
		filter["createdAt"] = bson.M{"$lte": *f.Before}
	}
	return filter
}

// MarkRead finds the matching messages, then updates them one conversation
// at a time so every count comes from its own UpdateMany.
func (db *MongoDB) MarkRead(ctx context.Context, filter ReadFilter, readAt time.Time) (ReadCounts, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "conversationId": 1})
	cursor, err := db.messages.Find(ctx, readFilterDoc(filter), opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo.MarkRead.Find")
	}

	var docs []struct {
		ID             string `bson:"_id"`
		ConversationID string `bson:"conversationId"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "mongo.MarkRead.Decode")
	}

	byConversation := make(map[string][]string)
	for _, d := range docs {
		byConversation[d.ConversationID] = append(byConversation[d.ConversationID], d.ID)
	}

	counts := ReadCounts{}
	for conversationID, ids := range byConversation {
		result, err := db.messages.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": ids}, "receiverId": filter.ReaderID, "read": false},
			bson.M{"$set": bson.M{"read": true, "readAt": readAt}},
		)
		if err != nil {
			return nil, errors.Wrap(err, "mongo.MarkRead")
		}
		if result.ModifiedCount > 0 {
			counts[conversationID] = result.ModifiedCount
		}
	}
	return counts, nil
}

// conversationStatsPipeline groups a user's messages by conversation, keeping
// the newest message and counting the unread ones addressed to the user.
func conversationStatsPipeline(userID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"senderId": userID},
			bson.M{"receiverId": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$conversationId",
			"lastMessage": bson.M{"$first": "$$ROOT"},
			"unreadCount": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiverId", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastMessage.createdAt", Value: -1}}}},
	}
}

type conversationStatDoc struct {
	ConversationID string          `bson:"_id"`
	LastMessage    *models.Message `bson:"lastMessage"`
	UnreadCount    int64           `bson:"unreadCount"`
}

func (db *MongoDB) GetConversationStats(ctx context.Context, userID string) ([]*ConversationStat, error) {
	cursor, err := db.messages.Aggregate(ctx, conversationStatsPipeline(userID))
	if err != nil {
		return nil, errors.Wrap(err, "mongo.GetConversationStats")
	}

	var docs []conversationStatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "mongo.GetConversationStats.Decode")
	}

	stats := make([]*ConversationStat, 0, len(docs))
	for _, d := range docs {
		stats = append(stats, &ConversationStat{
			ConversationID: d.ConversationID,
			LastMessage:    d.LastMessage,
			UnreadCount:    d.UnreadCount,
		})
	}
	return stats, nil
}

func (db *MongoDB) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := db.messages.CountDocuments(ctx, bson.M{"receiverId": userID, "read": false})
	return n, errors.Wrap(err, "mongo.CountUnread")
}

func (db *MongoDB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, nil)
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
