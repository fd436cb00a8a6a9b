package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls   int
	failN   int
	vec     []float32
	err     error
}

func (f *fakeBackend) embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, errors.New("backend down")
	}
	return f.vec, f.err
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	fb := &fakeBackend{failN: 2, vec: []float32{3, 4}}
	c := &Client{cfg: Config{Dimensions: 2, MaxRetries: 3, BaseDelay: time.Millisecond}, be: fb}

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, 3, fb.calls)
}

func TestEmbedExhaustsRetries(t *testing.T) {
	fb := &fakeBackend{failN: 99}
	c := &Client{cfg: Config{Dimensions: 2, MaxRetries: 2, BaseDelay: time.Millisecond}, be: fb}

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestEmbedDimensionMismatchIsInvariantViolation(t *testing.T) {
	fb := &fakeBackend{vec: []float32{1, 2, 3}}
	c := &Client{cfg: Config{Dimensions: 2, MaxRetries: 0, BaseDelay: time.Millisecond}, be: fb}

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}
