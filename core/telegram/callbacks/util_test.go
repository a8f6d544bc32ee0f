package callbacks

import (
	"testing"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name            string
		cb              *tele.Callback
		unique, payload string
	}{
		{"nil", nil, "", ""},
		{"encoded", &tele.Callback{Data: "\freply|42"}, "reply", "42"},
		{"no payload", &tele.Callback{Data: "\fstart_order|"}, "start_order", ""},
		{"bare", &tele.Callback{Data: "cancel_to_menu"}, "cancel_to_menu", ""},
		{"payload with bar", &tele.Callback{Data: "\fx|a|b"}, "x", "a|b"},
		{"pre-split", &tele.Callback{Unique: "reply", Data: "7"}, "reply", "7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, p := ParseCallbackData(tc.cb)
			require.Equal(t, tc.unique, u)
			require.Equal(t, tc.payload, p)
		})
	}
}
