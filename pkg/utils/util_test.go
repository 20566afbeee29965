package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	base, max := 100*time.Millisecond, time.Second

	assert.Equal(t, 100*time.Millisecond, Backoff(base, max, 0))
	assert.Equal(t, 100*time.Millisecond, Backoff(base, max, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, max, 2))
	assert.Equal(t, 800*time.Millisecond, Backoff(base, max, 4))
	assert.Equal(t, time.Second, Backoff(base, max, 5))
	assert.Equal(t, time.Second, Backoff(base, max, 50))
}

func TestGenOrderSn(t *testing.T) {
	at := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	a := GenOrderSn(1234567890123, at)
	b := GenOrderSn(1234567890124, at)

	assert.NotEqual(t, a, b)
	assert.Equal(t, "20261015", a[:8])
	assert.GreaterOrEqual(t, len(a), 8+12)
	assert.Equal(t, a, GenOrderSn(1234567890123, at))
}

func TestPanicTrace(t *testing.T) {
	var trace string
	func() {
		defer func() {
			trace = PanicTrace(recover())
		}()
		panic("boom")
	}()

	assert.True(t, strings.HasPrefix(trace, "boom\n"))
	assert.Contains(t, trace, "util_test.go")
}
