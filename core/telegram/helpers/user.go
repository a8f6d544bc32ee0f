package helpers

import (
	"github.com/m3rciful/relaybot/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

// SenderFrom converts a Telegram user into the transport-neutral sender.
func SenderFrom(u *tele.User) messaging.Sender {
	if u == nil {
		return messaging.Sender{}
	}
	return messaging.Sender{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}
