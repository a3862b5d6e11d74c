package bot

import "github.com/go-telegram/bot/models"

const (
	callbackMenu     = "menu"
	callbackFeeds    = "menu_feeds"
	callbackRefresh  = "menu_refresh"
	callbackSuggest  = "menu_suggest"
	callbackCategory = "menu_categories"
)

func menuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "📄 Feeds", CallbackData: callbackFeeds},
				{Text: "🗂 Categories", CallbackData: callbackCategory},
			},
			{
				{Text: "🔄 Refresh", CallbackData: callbackRefresh},
				{Text: "💡 Mentions", CallbackData: callbackSuggest},
			},
		},
	}
}

func returnKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "⬅️ Return to menu", CallbackData: callbackMenu}},
		},
	}
}
