package utils

import "github.com/go-telegram/bot/models"

// Button is an inline button that either opens URL or sends CallbackData.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

func CallbackButton(text, data string) Button {
	return Button{Text: text, CallbackData: data}
}

// BuildInlineKeyboard lays buttons out perRow to a row. perRow <= 0 puts
// each button on its own row.
func BuildInlineKeyboard(perRow int, buttons ...Button) models.InlineKeyboardMarkup {
	if perRow <= 0 {
		perRow = 1
	}
	rows := make([][]models.InlineKeyboardButton, 0, (len(buttons)+perRow-1)/perRow)
	row := make([]models.InlineKeyboardButton, 0, perRow)
	for i, button := range buttons {
		if i > 0 && i%perRow == 0 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, perRow)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         button.Text,
			URL:          button.URL,
			CallbackData: button.CallbackData,
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}
