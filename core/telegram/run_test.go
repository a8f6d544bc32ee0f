package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/relaybot/core/config"

	tele "gopkg.in/telebot.v4"
)

type notifier struct {
	to   string
	text interface{}
	err  error
}

func (n *notifier) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	n.to, n.text = to.Recipient(), what
	return &tele.Message{ID: 1}, n.err
}

func TestCheckOperatorChat(t *testing.T) {
	n := &notifier{}
	require.NoError(t, CheckOperatorChat(context.Background(), n, -100123, "up"))
	require.Equal(t, "-100123", n.to)
	require.Equal(t, "up", n.text)

	n.err = tele.ErrChatNotFound
	err := CheckOperatorChat(context.Background(), n, -100123, "up")
	require.ErrorIs(t, err, ErrLiveness)
	require.ErrorIs(t, err, tele.ErrChatNotFound)

	require.ErrorIs(t, CheckOperatorChat(context.Background(), n, 0, "up"), ErrLiveness)
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "Webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://x"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	require.Equal(t, "0.0.0.0:8443", wh.Listen)

	lp, ok := BuildPoller(PollerOptions{RunMode: coreconfig.RunModeLongpoll}).(*tele.LongPoller)
	require.True(t, ok)
	require.Equal(t, defaultLongPollTimeout, lp.Timeout)

	lp = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25}).(*tele.LongPoller)
	require.Equal(t, 25*time.Second, lp.Timeout)
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, len(mws))
		for i, m := range mws {
			out[i] = m.Name
		}
		return out
	}
	require.Equal(t, []string{"recover", "logger", "counters"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 500
	require.Equal(t, []string{"recover", "rate_limit", "logger", "counters"}, names(DefaultMiddlewares(cfg, nil)))
}

type flakyTripper struct {
	calls atomic.Int32
	fails int32
	err   error
}

func (f *flakyTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.fails {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}")), Request: req}, nil
}

func TestRetryTransportRetriesTransientErrors(t *testing.T) {
	base := &flakyTripper{fails: 2, err: syscall.ECONNRESET}
	rt := &retryTransport{base: base, maxRetries: 3}

	req, err := http.NewRequest(http.MethodPost, "http://example.invalid/getMe", strings.NewReader("a=b"))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(3), base.calls.Load())
}

func TestRetryTransportStopsOnPermanentErrors(t *testing.T) {
	perm := errors.New("certificate signed by unknown authority")
	base := &flakyTripper{fails: 5, err: perm}
	rt := &retryTransport{base: base, maxRetries: 3}

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.ErrorIs(t, err, perm)
	require.Equal(t, int32(1), base.calls.Load())
}
