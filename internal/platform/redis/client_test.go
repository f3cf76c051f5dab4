package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsBadURL(t *testing.T) {
	client, err := Open(context.Background(), "not-a-redis-url", Options{})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "parse redis url")
}
