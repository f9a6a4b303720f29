package telegram

import "fmt"

// Message keys shared by scenes and keyboards.
const (
	msgWhatNext        = "shared.what_next"
	msgSomethingWrong  = "shared.something_wrong"
	msgDefault         = "shared.default_handler"
	msgLanguageChanged = "shared.language_changed"

	msgAskEmail           = "start.ask_email"
	msgInvalidEmail       = "start.invalid_email"
	msgEmailNotRegistered = "start.email_not_registered"
	msgAskCode            = "start.ask_code"
	msgInvalidCode        = "start.invalid_code"
	msgAlreadyVerified    = "start.already_verified"
	msgWelcome            = "start.welcome"
	msgNoParishesAssigned = "start.no_parishes_assigned"
	msgTokenFailed        = "start.token_failed"
	msgSessionExpired     = "start.session_expired_reauth"
	msgMenuLocked         = "start.menu_locked"
	msgAdminsNotified     = "start.admins_notified"

	msgNeedSelectParish = "parishes.need_select_parish"
	msgSingleParish     = "parishes.single_parish"
	msgListOfParishes   = "parishes.list_of_parishes"
	msgAskForDetails    = "parishes.ask_for_details"
	msgChosenParish     = "parishes.chosen_parish"
	msgNoParishes       = "parishes.no_parishes"
	msgMassesActual     = "parishes.masses_actual"
	msgScheduleActual   = "parishes.schedule_actual"

	msgParishAddress      = "parish.address"
	msgParishPhone        = "parish.phone"
	msgParishEmail        = "parish.email"
	msgParishWebsite      = "parish.website"
	msgParishBroadcast    = "parish.broadcast"
	msgParishUpdatePeriod = "parish.update_period"

	msgContactWrite     = "contact.write_to_admins"
	msgContactDelivered = "contact.message_delivered"

	msgAboutMain = "about.main"

	msgAdminWelcome   = "admin.welcome"
	msgAdminDenied    = "admin.denied"
	msgAdminNoCommand = "admin.no_command"

	btnRefresh      = "buttons.refresh"
	btnChange       = "buttons.change"
	btnBack         = "buttons.back"
	btnChangeEmail  = "buttons.change_email"
	btnAskAdmin     = "buttons.ask_admin"
	btnRetry        = "buttons.retry"
	btnContactAdmin = "buttons.contact_admin"
	btnResumeEmail  = "buttons.resume_email"

	kbStart    = "keyboards.main.start"
	kbSchedule = "keyboards.main.schedule"
	kbParish   = "keyboards.main.parish"
	kbAbout    = "keyboards.main.about"
	kbContact  = "keyboards.main.contact"
	kbBack     = "keyboards.back.back"
)

var catalogs = map[string]map[string]string{
	"ru": {
		msgWhatNext:        "Што далей?",
		msgSomethingWrong:  "Нешта пайшло не так. Паспрабуйце яшчэ раз.",
		msgDefault:         "Не разумею паведамленне. Скарыстайцеся меню.",
		msgLanguageChanged: "Мова пераключана на беларускую.",

		msgAskEmail:           "Увядзіце email, пад якім вы зарэгістраваны як адміністратар парафіі.",
		msgInvalidEmail:       "Гэта не падобна на email. Паспрабуйце яшчэ раз, напрыклад: name@example.com",
		msgEmailNotRegistered: "Email не зарэгістраваны ў сістэме.",
		msgAskCode:            "Код адпраўлены на %s. Увядзіце яго ў адказ.",
		msgInvalidCode:        "Код не падышоў. Праверце пошту і паспрабуйце яшчэ раз.",
		msgAlreadyVerified:    "Вы ўжо падцверджаны. Карыстайцеся меню.",
		msgWelcome:            "Вітаем! Доступ да раскладу парафій адкрыты.",
		msgNoParishesAssigned: "За вамі пакуль не замацавана ніводнай парафіі.",
		msgTokenFailed:        "Не атрымалася атрымаць доступ. Паспрабуйце яшчэ раз.",
		msgSessionExpired:     "Сесія скончылася, патрэбна паўторная аўтарызацыя.",
		msgMenuLocked:         "Меню будзе даступна пасля падцверджання email.",
		msgAdminsNotified:     "Адміністратары апавешчаны, з вамі звяжуцца.",

		msgNeedSelectParish: "Выберыце парафію.",
		msgSingleParish:     "Ваша парафія:",
		msgListOfParishes:   "Спіс парафій:",
		msgAskForDetails:    "Выберыце парафію, каб паглядзець дэталі.",
		msgChosenParish:     "Парафія: %s",
		msgNoParishes:       "Няма даступных парафій.",
		msgMassesActual:     "Абноўлена імшаў: %d",
		msgScheduleActual:   "Расклад актуальны?",

		msgParishAddress:      "Адрас: %s",
		msgParishPhone:        "Тэлефон: %s",
		msgParishEmail:        "Email: %s",
		msgParishWebsite:      "Сайт: %s",
		msgParishBroadcast:    "Трансляцыя: %s",
		msgParishUpdatePeriod: "Перыяд абнаўлення: %d дзён",

		msgContactWrite:     "Напішыце паведамленне, і мы перададзім яго адміністратарам.",
		msgContactDelivered: "Паведамленне дастаўлена.",

		msgAboutMain: "Бот дапамагае трымаць расклад імшаў на imsha.by актуальным.",

		msgAdminWelcome:   "Адмін-кансоль адкрыта.",
		msgAdminDenied:    "Выбачайце, вы не адміністратар :(",
		msgAdminNoCommand: "Каманда не пазначана",

		btnRefresh:      "Пацвердзіць актуальнасць",
		btnChange:       "Змяніць расклад",
		btnBack:         "Назад",
		btnChangeEmail:  "Іншы email",
		btnAskAdmin:     "Звярнуцца да адміністратараў",
		btnRetry:        "Паспрабаваць яшчэ раз",
		btnContactAdmin: "Напісаць адміністратарам",
		btnResumeEmail:  "Увесці email",

		kbStart:    "Пачаць",
		kbSchedule: "Расклад",
		kbParish:   "Парафія",
		kbAbout:    "Пра бота",
		kbContact:  "Кантакт",
		kbBack:     "Назад ◀️",
	},
	"en": {
		msgWhatNext:        "What's next?",
		msgSomethingWrong:  "Something went wrong. Please try again.",
		msgDefault:         "I don't understand that message. Please use the menu.",
		msgLanguageChanged: "Language switched to English.",

		msgAskEmail:           "Enter the email you are registered with as a parish administrator.",
		msgInvalidEmail:       "That doesn't look like an email. Try again, e.g. name@example.com",
		msgEmailNotRegistered: "This email is not registered.",
		msgAskCode:            "A code was sent to %s. Reply with it here.",
		msgInvalidCode:        "That code didn't work. Check your inbox and try again.",
		msgAlreadyVerified:    "You are already verified. Use the menu.",
		msgWelcome:            "Welcome! Your parish schedules are now available.",
		msgNoParishesAssigned: "No parishes are assigned to you yet.",
		msgTokenFailed:        "Could not obtain access. Please try again.",
		msgSessionExpired:     "Your session has expired, please authenticate again.",
		msgMenuLocked:         "The menu unlocks after your email is verified.",
		msgAdminsNotified:     "The administrators were notified and will contact you.",

		msgNeedSelectParish: "Select a parish.",
		msgSingleParish:     "Your parish:",
		msgListOfParishes:   "Your parishes:",
		msgAskForDetails:    "Pick a parish to see its details.",
		msgChosenParish:     "Parish: %s",
		msgNoParishes:       "No parishes available.",
		msgMassesActual:     "Masses confirmed: %d",
		msgScheduleActual:   "Is the schedule up to date?",

		msgParishAddress:      "Address: %s",
		msgParishPhone:        "Phone: %s",
		msgParishEmail:        "Email: %s",
		msgParishWebsite:      "Website: %s",
		msgParishBroadcast:    "Broadcast: %s",
		msgParishUpdatePeriod: "Update period: %d days",

		msgContactWrite:     "Write a message and we will relay it to the administrators.",
		msgContactDelivered: "Message delivered.",

		msgAboutMain: "This bot keeps mass schedules on imsha.by up to date.",

		msgAdminWelcome:   "Admin console is open.",
		msgAdminDenied:    "Sorry, you are not an admin :(",
		msgAdminNoCommand: "Command was not specified",

		btnRefresh:      "Confirm up to date",
		btnChange:       "Edit schedule",
		btnBack:         "Back",
		btnChangeEmail:  "Use another email",
		btnAskAdmin:     "Ask the administrators",
		btnRetry:        "Try again",
		btnContactAdmin: "Write to administrators",
		btnResumeEmail:  "Enter email",

		kbStart:    "Start",
		kbSchedule: "Schedule",
		kbParish:   "Parish",
		kbAbout:    "About",
		kbContact:  "Contact",
		kbBack:     "Back ◀️",
	},
}

// Localizer resolves message keys against the per-language catalogs.
type Localizer struct {
	fallback string
}

// NewLocalizer builds a Localizer with the configured fallback locale.
func NewLocalizer(fallback string) *Localizer {
	if _, ok := catalogs[fallback]; !ok {
		fallback = "ru"
	}
	return &Localizer{fallback: fallback}
}

// T renders a message key in the given language, falling back to the
// default locale and finally to the key itself so a missing entry can
// never panic a handler.
func (l *Localizer) T(lang, key string, args ...interface{}) string {
	catalog, ok := catalogs[lang]
	if !ok {
		catalog = catalogs[l.fallback]
	}

	text, ok := catalog[key]
	if !ok {
		text, ok = catalogs[l.fallback][key]
		if !ok {
			text = key
		}
	}

	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// Bind returns a translate function fixed to one language, the shape
// scene contexts carry.
func (l *Localizer) Bind(lang string) func(key string, args ...interface{}) string {
	return func(key string, args ...interface{}) string {
		return l.T(lang, key, args...)
	}
}

// Weekday and month names for schedule rendering, indexed the way
// time.Weekday and time.Month are.
var weekdayNames = map[string][7]string{
	"ru": {"ВС", "ПН", "ВТ", "СР", "ЧТ", "ПТ", "СБ"},
	"en": {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
}

var monthNames = map[string][12]string{
	"ru": {"Января", "Февраля", "Марта", "Апреля", "Мая", "Июня", "Июля", "Августа", "Сентября", "Октября", "Ноября", "Декабря"},
	"en": {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
}
