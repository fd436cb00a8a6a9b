package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types/interfaces"
)

type fakeImpl struct {
	resp interfaces.LLMResponse
	err  error
}

func (f *fakeImpl) complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	return f.resp, f.err
}

type flakyImpl struct {
	failures int
	resp     interfaces.LLMResponse
	calls    int
}

func (f *flakyImpl) complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return interfaces.LLMResponse{}, errors.New("transient")
	}
	return f.resp, nil
}

func TestSaneRejectsShortAndRefusal(t *testing.T) {
	assert.False(t, sane(""))
	assert.False(t, sane("no"))
	assert.False(t, sane("I cannot help with that request at all"))
	assert.True(t, sane("Here is a grounded answer from the context."))
}

func TestCompleteFallsThroughOnFailure(t *testing.T) {
	c := &Client{backends: []*pooledBackend{
		{spec: BackendSpec{Name: "b1", Timeout: defaultTimeoutForTest()}, sem: newSemForTest(), impl: &fakeImpl{err: errors.New("down")}},
		{spec: BackendSpec{Name: "b2", Timeout: defaultTimeoutForTest()}, sem: newSemForTest(), impl: &fakeImpl{resp: interfaces.LLMResponse{Text: "a grounded response with enough length"}}},
	}}

	resp, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "grounded")
}

func TestCompleteAllBackendsFail(t *testing.T) {
	c := &Client{backends: []*pooledBackend{
		{spec: BackendSpec{Name: "b1", Timeout: defaultTimeoutForTest()}, sem: newSemForTest(), impl: &fakeImpl{err: errors.New("down")}},
	}}
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
}

func TestTryBackendRetriesBeforeFallingThrough(t *testing.T) {
	impl := &flakyImpl{failures: 2, resp: interfaces.LLMResponse{Text: "a grounded response with enough length"}}
	c := &Client{maxRetries: 3, baseDelay: time.Millisecond}
	b := &pooledBackend{spec: BackendSpec{Name: "b1", Timeout: defaultTimeoutForTest()}, sem: newSemForTest(), impl: impl}

	resp, err := c.tryBackend(context.Background(), b, "sys", "user")
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "grounded")
	assert.Equal(t, 3, impl.calls)
}

func TestTryBackendGivesUpAfterMaxRetries(t *testing.T) {
	impl := &flakyImpl{failures: 10}
	c := &Client{maxRetries: 2, baseDelay: time.Millisecond}
	b := &pooledBackend{spec: BackendSpec{Name: "b1", Timeout: defaultTimeoutForTest()}, sem: newSemForTest(), impl: impl}

	_, err := c.tryBackend(context.Background(), b, "sys", "user")
	require.Error(t, err)
	assert.Equal(t, 3, impl.calls)
}
