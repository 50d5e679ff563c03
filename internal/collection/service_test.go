package collection_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/collection"
)

type fakeSource struct {
	cols  []collection.Collection
	err   error
	calls int
}

func (f *fakeSource) FetchCollections(context.Context) ([]collection.Collection, error) {
	f.calls++
	return f.cols, f.err
}

func TestService_CachesListing(t *testing.T) {
	src := &fakeSource{cols: []collection.Collection{{Handle: "a", Title: "A"}}}
	svc := collection.NewService(collection.ServiceConfig{Source: src, Logger: zerolog.Nop()})

	for i := 0; i < 3; i++ {
		cols, err := svc.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, cols, 1)
	}
	assert.Equal(t, 1, src.calls)

	svc.Invalidate()
	_, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestService_StaleIfError(t *testing.T) {
	src := &fakeSource{cols: []collection.Collection{{Handle: "a"}}}
	svc := collection.NewService(collection.ServiceConfig{
		Source:   src,
		Logger:   zerolog.Nop(),
		CacheTTL: time.Nanosecond,
	})

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	src.err = errors.New("down")
	cols, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", cols[0].Handle)
}

func TestService_InvalidateKeepsStaleFallback(t *testing.T) {
	src := &fakeSource{cols: []collection.Collection{{Handle: "a"}}}
	svc := collection.NewService(collection.ServiceConfig{Source: src, Logger: zerolog.Nop()})

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	svc.Invalidate()
	src.err = errors.New("down")
	cols, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", cols[0].Handle)
	assert.Equal(t, 2, src.calls)
}

func TestService_UnavailableWithoutCache(t *testing.T) {
	svc := collection.NewService(collection.ServiceConfig{
		Source: &fakeSource{err: errors.New("down")},
		Logger: zerolog.Nop(),
	})

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, collection.ErrSourceUnavailable)
}

func TestService_Get(t *testing.T) {
	src := &fakeSource{cols: []collection.Collection{{Handle: "a", Title: "A", Description: "d"}}}
	svc := collection.NewService(collection.ServiceConfig{Source: src, Logger: zerolog.Nop()})

	c, err := svc.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "A", c.Selection().Title)
	assert.True(t, c.Selection().Selected())

	_, err = svc.Get(context.Background(), "b")
	assert.ErrorIs(t, err, collection.ErrNotFound)
}
