package dialogue

import (
	"strconv"

	"github.com/m3rciful/relaybot/internal/messaging"
)

// Button actions. They travel as callback data and come back as Event.Action.
const (
	ActionStartOrder     = "start_order"
	ActionStartSupport   = "start_support"
	ActionStartReview    = "start_review"
	ActionReviewPositive = "review_type_positive"
	ActionReviewNegative = "review_type_negative"
	ActionCancel         = "cancel_to_menu"
	// ActionReply is attached to relay posts; its payload is the user id.
	ActionReply = "reply"
)

var cancelButton = messaging.Button{Text: "❌ Отмена / В главное меню", Action: ActionCancel}

// MenuKeyboard is the main menu shown on /start and after each dialogue.
func MenuKeyboard() *messaging.Keyboard {
	return &messaging.Keyboard{Rows: [][]messaging.Button{
		{{Text: "🛒 ЗАКАЗЫ", Action: ActionStartOrder}},
		{{Text: "💬 Техподдержка", Action: ActionStartSupport}},
		{{Text: "⭐ ОТЗЫВЫ", Action: ActionStartReview}},
	}}
}

// CancelKeyboard carries the single cancel button.
func CancelKeyboard() *messaging.Keyboard {
	return &messaging.Keyboard{Rows: [][]messaging.Button{{cancelButton}}}
}

// ReviewTypeKeyboard offers the two polarities plus cancel.
func ReviewTypeKeyboard() *messaging.Keyboard {
	return &messaging.Keyboard{Rows: [][]messaging.Button{
		{
			{Text: "👍 Положительный", Action: ActionReviewPositive},
			{Text: "👎 Отрицательный", Action: ActionReviewNegative},
		},
		{cancelButton},
	}}
}

// ReplyKeyboard is attached to support relays in the operator channel.
func ReplyKeyboard(userID int64) *messaging.Keyboard {
	return &messaging.Keyboard{Rows: [][]messaging.Button{
		{{Text: "Ответить", Action: ActionReply, Payload: strconv.FormatInt(userID, 10)}},
	}}
}
