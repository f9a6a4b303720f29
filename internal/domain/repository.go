package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUserNotFound is returned when no user document matches the given id.
var ErrUserNotFound = errors.New("user not found")

type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// UserRepository persists and retrieves parish administrators in MongoDB.
type UserRepository struct {
	collection userCollection
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection userCollection) *UserRepository {
	return &UserRepository{collection: collection}
}

// GetByID fetches a user by Telegram user id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	if err := r.check(ctx); err != nil {
		return User{}, err
	}
	if id == "" {
		return User{}, errors.New("user id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"_id": id})
	if result == nil {
		return User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// UpsertVerified creates or updates the user record after a successful email
// verification. On insert the creation timestamp and identity fields are set;
// on update only the email fields change, so an email change resets the
// verified flag implicitly by writing the new state.
func (r *UserRepository) UpsertVerified(ctx context.Context, user User) (User, error) {
	if err := r.check(ctx); err != nil {
		return User{}, err
	}
	if user.ID == "" {
		return User{}, errors.New("user id is required")
	}
	if user.Email == "" {
		return User{}, errors.New("email is required")
	}

	now := time.Now().UnixMilli()
	if user.Created == 0 {
		user.Created = now
	}
	if user.LastActivity == 0 {
		user.LastActivity = now
	}
	if user.Language == "" {
		user.Language = "ru"
	}

	update := bson.M{
		"$set": bson.M{
			"email":          user.Email,
			"email_verified": user.EmailVerified,
			"last_activity":  user.LastActivity,
		},
		"$setOnInsert": bson.M{
			"created":                user.Created,
			"username":               user.Username,
			"name":                   user.Name,
			"language":               user.Language,
			"observable_parish_keys": []string{},
		},
	}

	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		update,
		options.Update().SetUpsert(true),
	); err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}

	return r.GetByID(ctx, user.ID)
}

// SetTokens writes the access token, its expiry, and the parish keys derived
// from the token claims in one document update, so a crash cannot leave the
// token and key list out of step.
func (r *UserRepository) SetTokens(ctx context.Context, id, accessToken string, expiresAt int64, parishKeys []string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return errors.New("user id is required")
	}
	if parishKeys == nil {
		parishKeys = []string{}
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"access_token":           accessToken,
			"token_expires_at":       expiresAt,
			"observable_parish_keys": parishKeys,
		}},
	)
	if err != nil {
		return fmt.Errorf("update user tokens: %w", err)
	}
	if result != nil && result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ResetEmail clears the verified flag and stored email, forcing the start
// scene to run the verification flow again.
func (r *UserRepository) ResetEmail(ctx context.Context, id string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return errors.New("user id is required")
	}

	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"email":            "",
			"email_verified":   false,
			"access_token":     "",
			"token_expires_at": int64(0),
		}},
	); err != nil {
		return fmt.Errorf("reset user email: %w", err)
	}

	return nil
}

// Touch updates the last-activity timestamp. Missing users are ignored: the
// middleware calls this for every update, registered or not.
func (r *UserRepository) Touch(ctx context.Context, id string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return errors.New("user id is required")
	}

	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_activity": time.Now().UnixMilli()}},
	); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}

	return nil
}

// SetLanguage persists the user's locale choice.
func (r *UserRepository) SetLanguage(ctx context.Context, id, language string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return errors.New("user id is required")
	}

	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"language": language}},
	); err != nil {
		return fmt.Errorf("update user language: %w", err)
	}

	return nil
}

// FindByParishKey lists the users observing the given parish key, used by the
// stale-schedule notifier fan-out.
func (r *UserRepository) FindByParishKey(ctx context.Context, parishKey string) ([]User, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	if parishKey == "" {
		return nil, errors.New("parish key is required")
	}

	return r.findUsers(ctx, bson.M{"observable_parish_keys": parishKey})
}

// FindByLanguage lists users with the given persisted locale, used by the
// admin broadcast command. An empty language matches everyone.
func (r *UserRepository) FindByLanguage(ctx context.Context, language string) ([]User, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	filter := bson.M{}
	if language != "" {
		filter["language"] = language
	}

	return r.findUsers(ctx, filter)
}

func (r *UserRepository) findUsers(ctx context.Context, filter bson.M) ([]User, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	return users, nil
}

func (r *UserRepository) check(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
