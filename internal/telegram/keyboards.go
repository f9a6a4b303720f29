package telegram

import (
	"fmt"
	"net/url"

	"github.com/go-telegram/bot/models"

	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/telegram/action"
	"imshaby_bot/internal/telegram/scene"
)

type translateFunc func(key string, args ...interface{}) string

// mainKeyboard is the persistent reply keyboard. Users without parish
// access only get the start button.
func mainKeyboard(t translateFunc, hasParishes bool) *models.ReplyKeyboardMarkup {
	if !hasParishes {
		return &models.ReplyKeyboardMarkup{
			Keyboard: [][]models.KeyboardButton{
				{{Text: t(kbStart)}},
			},
			ResizeKeyboard: true,
		}
	}

	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: t(kbSchedule)}, {Text: t(kbParish)}},
			{{Text: t(kbAbout)}, {Text: t(kbContact)}},
		},
		ResizeKeyboard: true,
	}
}

func backKeyboard(t translateFunc) *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: t(kbBack)}},
		},
		ResizeKeyboard: true,
	}
}

// parishListKeyboard renders one button per parish, all carrying the
// select-parish action with the parish id as payload.
func parishListKeyboard(parishes []domain.Parish) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(parishes))
	for _, parish := range parishes {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         parish.Title,
			CallbackData: action.Encode(action.SelectParish, parish.ID),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// parishControlKeyboard is shown under a parish card: back to the list
// plus a link into the admin panel scoped to the parish key.
func parishControlKeyboard(t translateFunc, adminURL, parishKey string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: t(btnBack), CallbackData: action.Encode(action.Back, "")},
			{Text: t(btnChange), URL: adminPanelURL(adminURL, parishKey)},
		}},
	}
}

// scheduleControlKeyboard closes a schedule listing: confirm relevance
// or jump to the admin panel to edit it.
func scheduleControlKeyboard(t translateFunc, adminURL, parishID, parishKey string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: t(btnRefresh), CallbackData: action.Encode(action.RefreshSchedule, parishID)},
			{Text: t(btnChange), URL: adminPanelURL(adminURL, parishKey)},
		}},
	}
}

func emailNotRegisteredKeyboard(t translateFunc) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: t(btnChangeEmail), CallbackData: action.Encode(action.ChangeEmail, "")}},
			{{Text: t(btnAskAdmin), CallbackData: action.Encode(action.AskAdminToken, "")}},
		},
	}
}

func tokenFailedKeyboard(t translateFunc) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: t(btnRetry), CallbackData: action.Encode(action.RetryTokenRetrieval, "")}},
			{{Text: t(btnChangeEmail), CallbackData: action.Encode(action.ChangeEmailToken, "")}},
			{{Text: t(btnAskAdmin), CallbackData: action.Encode(action.AskAdminToken, "")}},
		},
	}
}

func contactAdminKeyboard(t translateFunc) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: t(btnContactAdmin), CallbackData: action.Encode(action.ContactAdmin, "")},
		}},
	}
}

func resumeEmailKeyboard(t translateFunc) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: t(btnResumeEmail), CallbackData: action.Encode(action.ChangeEmail, "")},
		}},
	}
}

func adminPanelURL(adminURL, parishKey string) string {
	return fmt.Sprintf("%s?parish=%s", adminURL, url.QueryEscape(parishKey))
}

// mainKeyboardFor derives the keyboard variant from the session user.
func mainKeyboardFor(tc *scene.Context) *models.ReplyKeyboardMarkup {
	hasParishes := tc.Session != nil &&
		tc.Session.User != nil &&
		len(tc.Session.User.ObservableParishKeys) > 0
	return mainKeyboard(tc.T, hasParishes)
}
