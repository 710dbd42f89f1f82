package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := RequestID(WithRequestID(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestSubject(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	_, ok := Subject(ctx)
	assert.False(t, ok)

	sub, ok := Subject(WithSubject(ctx, "operator"))
	assert.True(t, ok)
	assert.Equal(t, "operator", sub)
}
