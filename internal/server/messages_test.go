package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoErrOK(t *testing.T) {
	msg := NoErrOK(5, map[string]int{"n": 1})

	assert.Equal(t, 5, msg.Id, "expected correlated id")
	assert.Equal(t, 200, msg.Response.ResponseCode)
	assert.Empty(t, msg.Response.Error, "expected no error string")
	assert.NotNil(t, msg.Response.Data, "expected data payload")
	assert.False(t, msg.Timestamp.IsZero(), "expected a timestamp")
}

func TestErrInvalidMessage(t *testing.T) {
	msg := ErrInvalidMessage(9)
	assert.Equal(t, 9, msg.Id, "expected correlated id")
	assert.Equal(t, 400, msg.Response.ResponseCode)

	// unparseable messages have no usable id; the response omits it
	msg = ErrInvalidMessage(0)
	assert.Zero(t, msg.Id, "expected no id for an unparseable message")
}

func TestErrorResponses(t *testing.T) {
	assert.Equal(t, 404, ErrNotFoundResponse(1).Response.ResponseCode)
	assert.Equal(t, 403, ErrNotAuthorizedResponse(1).Response.ResponseCode)
	assert.Equal(t, 500, ErrInternalError(1).Response.ResponseCode)
}

func TestNow(t *testing.T) {
	now := Now()
	assert.Equal(t, now, now.UTC(), "expected UTC time")
	assert.Zero(t, now.Nanosecond()%int(1e6), "expected millisecond precision")
}
