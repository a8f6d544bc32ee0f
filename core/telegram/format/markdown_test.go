package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdownV1(t *testing.T) {
	got, err := EscapeMarkdown("ann_lee *vip* [x] `y`", MarkdownV1)
	require.NoError(t, err)
	require.Equal(t, "ann\\_lee \\*vip\\* \\[x] \\`y\\`", got)
}

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("a.b-c!", MarkdownV2)
	require.NoError(t, err)
	require.Equal(t, "a\\.b\\-c\\!", got)
}

func TestEscapeMarkdownUnknownVersion(t *testing.T) {
	_, err := EscapeMarkdown("x", 3)
	require.Error(t, err)
}

func TestMarkdownLeavesPlainTextAlone(t *testing.T) {
	require.Equal(t, "Нужен возврат", Markdown("Нужен возврат"))
}
