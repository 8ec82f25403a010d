package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestOpenRedis_Errors(t *testing.T) {
	_, err := OpenRedis(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = OpenRedis(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
