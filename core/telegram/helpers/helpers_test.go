package helpers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestCountersAreNilSafe(t *testing.T) {
	var c *Counters
	c.CountMessage(true)
	n, kb := c.Snapshot()
	require.Zero(t, n)
	require.False(t, kb)
	require.Nil(t, CountersFrom(context.Background()))
}

func TestCountersConcurrent(t *testing.T) {
	ctx := WithCounters(context.Background())
	c := CountersFrom(ctx)
	require.NotNil(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.CountMessage(i == 7)
		}(i)
	}
	wg.Wait()

	n, kb := c.Snapshot()
	require.Equal(t, 20, n)
	require.True(t, kb)
}

func TestSenderFrom(t *testing.T) {
	s := SenderFrom(&tele.User{ID: 5, FirstName: "Ivan", LastName: "Petrov", Username: "ivanp"})
	require.Equal(t, int64(5), s.ID)
	require.Equal(t, "Ivan Petrov", s.DisplayName())
	require.Equal(t, "ivanp", s.Username)

	require.Zero(t, SenderFrom(nil).ID)
}
