package timer

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTimer(t *testing.T) (*TurnTimer, *quartz.Mock, chan Expiry) {
	t.Helper()
	clock := quartz.NewMock(t)
	fired := make(chan Expiry, 4)
	return New(clock, func(e Expiry) { fired <- e }), clock, fired
}

func advance(t *testing.T, clock *quartz.Mock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock.Advance(d).MustWait(ctx)
}

func TestTimeoutWithoutBank(t *testing.T) {
	t.Parallel()
	tt, clock, fired := newTestTimer(t)

	tok := tt.Start(3, 10*time.Second, 0)
	assert.Equal(t, Running, tt.State())
	assert.Equal(t, 10*time.Second, tt.Remaining())

	advance(t, clock, 4*time.Second)
	assert.Equal(t, 6*time.Second, tt.Remaining())
	assert.Empty(t, fired)

	advance(t, clock, 6*time.Second)
	e := <-fired
	assert.Equal(t, Expiry{Seat: 3, Token: tok}, e)

	res, used := tt.Expire(e.Token)
	assert.Equal(t, TimedOut, res)
	assert.Zero(t, used)
	assert.Equal(t, Expired, tt.State())

	res, _ = tt.Expire(e.Token)
	assert.Equal(t, Stale, res, "a token settles once")
}

func TestBankExtendsOnce(t *testing.T) {
	t.Parallel()
	tt, clock, fired := newTestTimer(t)

	tt.Start(1, 5*time.Second, 20*time.Second)
	advance(t, clock, 5*time.Second)
	res, _ := tt.Expire((<-fired).Token)
	require.Equal(t, Extended, res)
	assert.True(t, tt.InBank())
	assert.Equal(t, 20*time.Second, tt.Remaining())

	advance(t, clock, 20*time.Second)
	res, used := tt.Expire((<-fired).Token)
	assert.Equal(t, TimedOut, res)
	assert.Equal(t, 20*time.Second, used)
}

func TestCancelBeatsExpiry(t *testing.T) {
	t.Parallel()
	tt, clock, fired := newTestTimer(t)

	tok := tt.Start(2, 5*time.Second, 0)
	assert.Zero(t, tt.Cancel())
	assert.Equal(t, Cancelled, tt.State())

	// A firing that was already in flight when the action won is ignored.
	res, _ := tt.Expire(tok)
	assert.Equal(t, Stale, res)

	advance(t, clock, 5*time.Second)
	assert.Empty(t, fired, "a stopped countdown never fires")
}

func TestCancelDuringBankReportsUsage(t *testing.T) {
	t.Parallel()
	tt, clock, fired := newTestTimer(t)

	tt.Start(0, 5*time.Second, 30*time.Second)
	advance(t, clock, 5*time.Second)
	res, _ := tt.Expire((<-fired).Token)
	require.Equal(t, Extended, res)

	advance(t, clock, 12*time.Second)
	assert.Equal(t, 12*time.Second, tt.Cancel())
}

func TestRestartSupersedesToken(t *testing.T) {
	t.Parallel()
	tt, _, _ := newTestTimer(t)

	first := tt.Start(0, 5*time.Second, 0)
	second := tt.Start(1, 5*time.Second, 0)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, tt.Seat())

	res, _ := tt.Expire(first)
	assert.Equal(t, Stale, res)
	res, _ = tt.Expire(second)
	assert.Equal(t, TimedOut, res)
}
