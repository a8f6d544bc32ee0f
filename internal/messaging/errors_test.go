package messaging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	base := errors.New("telegram: bot was blocked by the user (403)")
	err := fmt.Errorf("dispatch: relay reply: %w", &Error{Kind: KindRecipientUnreachable, Op: "send", Err: base})

	require.ErrorIs(t, err, ErrRecipientUnreachable)
	require.NotErrorIs(t, err, ErrNotModified)
	require.ErrorIs(t, err, base)
	require.Equal(t, KindRecipientUnreachable, KindOf(err))
	require.Contains(t, err.Error(), "messaging: send")
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, KindOther, KindOf(errors.New("boom")))
	require.Equal(t, KindOther, KindOf(nil))
}

func TestSenderDisplayName(t *testing.T) {
	require.Equal(t, "Ann Lee", Sender{FirstName: "Ann", LastName: "Lee"}.DisplayName())
	require.Equal(t, "Ann", Sender{FirstName: " Ann "}.DisplayName())
	require.Equal(t, "ann_l", Sender{Username: "ann_l"}.DisplayName())
	require.Equal(t, "—", Sender{}.DisplayName())
}

func TestContentKind(t *testing.T) {
	require.True(t, ContentText.IsText())
	require.True(t, ContentPhoto.Supported())
	require.False(t, ContentUnsupported.Supported())
	require.False(t, ContentKind("").Supported())
}
