package embedding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlcore/internal/embedding"
)

func TestFakeClientIsDeterministic(t *testing.T) {
	c := embedding.NewFakeClient(8)

	v1, err := c.Embed(context.Background(), []string{"hello world"})
	require.Nil(t, err)
	require.Len(t, v1, 1)
	require.Len(t, v1[0], 8)

	v2, err := c.Embed(context.Background(), []string{"hello world"})
	require.Nil(t, err)
	require.Equal(t, v1[0], v2[0])
}

func TestFakeClientShortCountSignalsMismatch(t *testing.T) {
	c := embedding.NewFakeClient(4)
	c.ShortCount(1)

	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.Nil(t, err)
	require.Len(t, vecs, 2)
}
