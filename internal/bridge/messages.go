package bridge

// Minimal per-language message catalog. Replies fall back to English when
// a key has no translation for the actor's stored language.

var messages = map[string]map[string]string{
	"en": {
		"start": "Hi! This bridge links this chat with the game server.\nUse /register to link your game account, /online for the player list, /help for everything else.",
		"help": "/register — link your game account\n" +
			"/online — refresh the player list\n" +
			"/lang en|ru — pick your language\n" +
			"/cancel — abort the current operation",
		"help_admin":   "\nAdmin:\n/link — link a user by hand\n/addserver — add a server\n/addadmin — add an admin\n/addgroup — add a rank group\n/setgroup — put a user in a rank group\n/addtime — grant rank time",
		"cancelled":    "Operation cancelled.",
		"no_wizard":    "Nothing to cancel.",
		"refreshing":   "Refreshing the player list…",
		"lang_set":     "Language set to English.",
		"lang_usage":   "Usage: /lang en|ru",
		"admins_only":  "That command is for admins.",
		"unknown":      "Unknown command. Try /help.",
	},
	"ru": {
		"start": "Привет! Этот мост связывает чат с игровым сервером.\n/register — привязать игровой аккаунт, /online — список игроков, /help — остальное.",
		"help": "/register — привязать игровой аккаунт\n" +
			"/online — обновить список игроков\n" +
			"/lang en|ru — выбрать язык\n" +
			"/cancel — отменить текущую операцию",
		"cancelled":   "Операция отменена.",
		"no_wizard":   "Нечего отменять.",
		"refreshing":  "Обновляю список игроков…",
		"lang_set":    "Язык переключён на русский.",
		"lang_usage":  "Использование: /lang en|ru",
		"admins_only": "Эта команда только для админов.",
		"unknown":     "Неизвестная команда. Попробуйте /help.",
	},
}

func tr(lang, key string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages["en"][key]
}
