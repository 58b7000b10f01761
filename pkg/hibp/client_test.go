package hibp

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisdev/identity-api/pkg/circuitbreaker"
)

var client = New(WithHTTP(&http.Client{
	Timeout: time.Second * 2,
}))

func TestCheck(t *testing.T) {
	defer gock.Off()
	ctx := context.Background()

	count, err := client.Check(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyPassword, "blank input should return ErrEmptyPassword")
	assert.Equal(t, -1, count)

	gock.New("https://api.pwnedpasswords.com").Get("/range/5c1d8").Times(1).Reply(200).BodyString("EAF2F254732680E8AC339B84F3266ECCBB5:1\r\nFC446EB88938834178CB9322C1EE273C2A7:2")
	count, err = client.Check(ctx, "pwned")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	gock.New("https://api.pwnedpasswords.com").Get("/range/ba189").Times(1).Reply(200).BodyString("FD4CB34F0378BCB15D23F6FFD28F0775C9E:3\r\nFDF342FCD8C3611DAE4D76E8A992A3E4169:4")
	count, err = client.Check(ctx, "notpwned")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCheckWithPadding(t *testing.T) {
	defer gock.Off()
	ctx := context.Background()
	padded := New(WithHTTP(&http.Client{Timeout: time.Second * 2}), WithPadding(true))

	gock.New("https://api.pwnedpasswords.com").Get("/range/a1733").Times(1).Reply(200).BodyString("C4CE0F1F0062B27B9E2F41AF0C08218017C:1\r\nFC446EB88938834178CB9322C1EE273C2A7:2\r\nFE81480327C992FE62065A827429DD1318B:0")
	count, err := padded.Check(ctx, "paddedpwned")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	gock.New("https://api.pwnedpasswords.com").Get("/range/5617b").Times(1).Reply(200).BodyString("FD4CB34F0378BCB15D23F6FFD28F0775C9E:3\r\nFDF342FCD8C3611DAE4D76E8A992A3E4169:4\r\nFE81480327C992FE62065A827429DD1318B:0")
	count, err = padded.Check(ctx, "paddednotpwned")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	// A zero-count entry is API padding, never a hit.
	gock.New("https://api.pwnedpasswords.com").Get("/range/79082").Times(1).Reply(200).BodyString("FDF342FCD8C3611DAE4D76E8A992A3E4169:4\r\nFE81480327C992FE62065A827429DD1318B:0\r\nAFEF386F56EB0B4BE314E07696E5E6E6536:0")
	count, err = padded.Check(ctx, "paddednotpwnedzero")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCheckServiceError(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.pwnedpasswords.com").Get("/range/5c1d8").Times(1).Reply(429).BodyString("rate limited")
	count, err := client.Check(context.Background(), "pwned")
	assert.Equal(t, -1, count)
	require.True(t, IsLookupError(err))

	var le *LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LookupService, le.Kind)
	assert.Equal(t, 429, le.Status)
}

func TestCheckTransportError(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.pwnedpasswords.com").Get("/range/5c1d8").Times(1).ReplyError(errors.New("connection reset"))
	count, err := client.Check(context.Background(), "pwned")
	assert.Equal(t, -1, count)

	var le *LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LookupTransport, le.Kind)
}

func TestCheckBreakerOpen(t *testing.T) {
	defer gock.Off()

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "hibp",
		MaxFailures: 1,
		Timeout:     time.Minute,
	})
	c := New(WithHTTP(&http.Client{Timeout: time.Second}), WithBreaker(cb))

	gock.New("https://api.pwnedpasswords.com").Get("/range/5c1d8").Times(1).ReplyError(errors.New("connection reset"))
	_, err := c.Check(context.Background(), "pwned")
	require.True(t, IsLookupError(err))
	require.Equal(t, "open", cb.State())

	// No mock is mounted for a second request; the breaker answers instead.
	_, err = c.Check(context.Background(), "pwned")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.True(t, IsLookupError(err))
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestClassify(t *testing.T) {
	var le *LookupError

	require.ErrorAs(t, classify(context.DeadlineExceeded), &le)
	assert.Equal(t, LookupTimeout, le.Kind)

	require.ErrorAs(t, classify(timeoutErr{}), &le)
	assert.Equal(t, LookupTimeout, le.Kind)

	require.ErrorAs(t, classify(errors.New("no route to host")), &le)
	assert.Equal(t, LookupTransport, le.Kind)
}
