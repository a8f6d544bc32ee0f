// Package callbacks decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
// Either part may be empty.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns the unique part of the current callback.
func CallbackKey(c tele.Context) string {
	key, _ := ParseCallbackData(c.Callback())
	return key
}
