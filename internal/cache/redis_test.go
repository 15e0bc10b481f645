package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_ReachableServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client := Connect(mr.Addr())
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := client.Get(context.Background(), "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnect_URLForm(t *testing.T) {
	mr := miniredis.RunT(t)

	client := Connect("redis://" + mr.Addr())
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestConnect_InvalidURL(t *testing.T) {
	assert.Nil(t, Connect("redis://bad:url:port"))
}

func TestConnect_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, Connect(addr))
}
