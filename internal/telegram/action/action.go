// Package action encodes inline-keyboard callback data. Telegram limits
// callback data to 64 bytes, so the format is a bare "name|payload"
// pair rather than a structured envelope.
package action

import "strings"

const separator = "|"

// Callback action names used across scenes.
const (
	ChangeEmail         = "change_email"
	AskAdminToken       = "ask_admin_token"
	RetryTokenRetrieval = "retry_token"
	ChangeEmailToken    = "change_email_token"
	ContactAdmin        = "contact_admin"
	SelectParish        = "parish"
	Back                = "back"
	RefreshSchedule     = "refresh_schedule"
)

// Action is one decoded callback press.
type Action struct {
	Name    string
	Payload string
}

// Encode renders callback data for an inline button.
func Encode(name, payload string) string {
	if payload == "" {
		return name
	}
	return name + separator + payload
}

// Decode parses callback data. It is a total function: anything that
// does not look like an encoded action comes back as an Action whose
// Name is the raw input, so unknown buttons fail as unhandled actions
// rather than panics.
func Decode(data string) Action {
	name, payload, found := strings.Cut(data, separator)
	if !found {
		return Action{Name: data}
	}
	return Action{Name: name, Payload: payload}
}
