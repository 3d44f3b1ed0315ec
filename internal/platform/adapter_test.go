package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeText(t *testing.T) {
	assert.Equal(t, "hello", ComposeText("hello", nil))
	assert.Equal(t, "hello\n\n#go #release", ComposeText("hello", []string{"go", "release"}))
	assert.Equal(t, "#go", ComposeText("", []string{"go"}))

	// Stored bare or with a stray '#', rendered the same either way.
	assert.Equal(t, "hi\n\n#go", ComposeText("hi", []string{"#go"}))
	assert.Equal(t, "hi", ComposeText("hi", []string{"", "  "}))
}

func TestKindFromStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		http.StatusUnauthorized:          ErrAuthExpired,
		http.StatusForbidden:             ErrAuthExpired,
		http.StatusTooManyRequests:       ErrRateLimited,
		http.StatusRequestTimeout:        ErrTimeout,
		http.StatusGatewayTimeout:        ErrTimeout,
		http.StatusInternalServerError:   ErrTransientServerError,
		http.StatusServiceUnavailable:    ErrTransientServerError,
		http.StatusBadRequest:            ErrContentRejected,
		http.StatusUnprocessableEntity:   ErrContentRejected,
		http.StatusRequestEntityTooLarge: ErrContentRejected,
		http.StatusNotFound:              ErrUnknown,
	}
	for status, want := range cases {
		t.Run(fmt.Sprintf("%d", status), func(t *testing.T) {
			assert.Equal(t, want, KindFromStatus(status))
		})
	}
}

func TestKindFromError(t *testing.T) {
	assert.Equal(t, ErrTimeout, KindFromError(context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout, KindFromError(context.Canceled))
	assert.Equal(t, ErrTransientServerError, KindFromError(errors.New("connection refused")))
}

func TestRetryable(t *testing.T) {
	retryable := []ErrorKind{ErrAccountUnavailable, ErrRateLimited, ErrTimeout, ErrTransientServerError}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), string(k))
	}

	terminal := []ErrorKind{ErrAuthExpired, ErrContentRejected, ErrUnknown}
	for _, k := range terminal {
		assert.False(t, k.Retryable(), string(k))
	}
}

type namedAdapter string

func (a namedAdapter) Name() string { return string(a) }
func (a namedAdapter) Publish(context.Context, Request) Outcome {
	return succeeded(string(a), "1")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(namedAdapter(Mastodon), namedAdapter(Telegram))

	a, ok := r.Get(Mastodon)
	assert.True(t, ok)
	assert.Equal(t, Mastodon, a.Name())

	_, ok = r.Get(Tiktok)
	assert.False(t, ok)

	assert.Equal(t, []string{Mastodon, Telegram}, r.Names())
}
