package minio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsPresignTTL(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "episodes"})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, s.presignTTL)
}

func TestNewHonorsExplicitPresignTTL(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "episodes", PresignTTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.presignTTL)
}

func TestPresignedURLReturnsEmptyForEmptyKey(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "episodes"})
	require.NoError(t, err)

	got, err := s.PresignedURL(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
