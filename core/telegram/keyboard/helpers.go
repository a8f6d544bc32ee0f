// Package keyboard builds telebot reply markup.
package keyboard

import (
	"github.com/m3rciful/relaybot/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn describes one inline data button.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// FromKeyboard converts a transport-neutral keyboard. Button actions become
// the callback unique and payloads the callback data. Nil in, nil out.
func FromKeyboard(kb *messaging.Keyboard) *tele.ReplyMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]InlineBtn, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		r := make([]InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Payload})
		}
		rows = append(rows, r)
	}
	return InlineButtonsRows(rows...)
}

// RemoveKeyboard returns markup that hides a reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
