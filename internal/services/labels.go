package services

import (
	"github.com/tbourn/go-bot-dashboard/internal/format"
	"golang.org/x/text/language"
)

type cardLabel struct{ title, description string }

type labels struct {
	totalUsers, totalMessages, activeDialogs cardLabel
}

var (
	russianLabels = labels{
		totalUsers:    cardLabel{"Всего пользователей", "Уникальные пользователи"},
		totalMessages: cardLabel{"Всего сообщений", "За выбранный период"},
		activeDialogs: cardLabel{"Активные диалоги", "Диалоги с активностью"},
	}
	englishLabels = labels{
		totalUsers:    cardLabel{"Total users", "Unique users"},
		totalMessages: cardLabel{"Total messages", "In the selected period"},
		activeDialogs: cardLabel{"Active dialogs", "Dialogs with activity"},
	}
)

func labelsFor(f *format.Formatter) *labels {
	if f.Locale() == language.English {
		return &englishLabels
	}
	return &russianLabels
}
