// Package domain defines the bot's data model and MongoDB repositories.
package domain

// User is a parish administrator registered with the bot. The document id is
// the Telegram user id rendered as a string.
type User struct {
	ID                   string   `bson:"_id" json:"id"`
	Created              int64    `bson:"created" json:"created"`
	LastActivity         int64    `bson:"last_activity" json:"last_activity"`
	Username             string   `bson:"username" json:"username"`
	Name                 string   `bson:"name" json:"name"`
	Email                string   `bson:"email" json:"email"`
	EmailVerified        bool     `bson:"email_verified" json:"email_verified"`
	AccessToken          string   `bson:"access_token" json:"access_token"`
	TokenExpiresAt       int64    `bson:"token_expires_at" json:"token_expires_at"`
	ObservableParishKeys []string `bson:"observable_parish_keys" json:"observable_parish_keys"`
	Language             string   `bson:"language" json:"language"`
}
