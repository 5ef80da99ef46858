package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newRenderCache(skip bool, calls *int, loadErr error) *ReadThroughCache[string, string, int] {
	cache := NewInMemoryCacheManager[string, string]("render-cache", DefaultExpiration, DefaultCleanupInterval)
	load := func(ctx context.Context, width int) (string, error) {
		*calls++
		if loadErr != nil {
			return "", loadErr
		}
		return "rendered", nil
	}
	return NewReadThroughCache(cache, load, skip)
}

func TestReadThroughCache_MissLoadsThenHits(t *testing.T) {
	calls := 0
	rtc := newRenderCache(false, &calls, nil)

	got, err := rtc.Get(context.Background(), "doc@80", 80, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "rendered", got)
	require.Equal(t, 1, calls)

	got, err = rtc.Get(context.Background(), "doc@80", 80, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "rendered", got)
	require.Equal(t, 1, calls, "second lookup should be served from cache")
}

func TestReadThroughCache_LoaderErrorIsNotCached(t *testing.T) {
	calls := 0
	boom := errors.New("render failed")
	rtc := newRenderCache(false, &calls, boom)

	_, err := rtc.Get(context.Background(), "doc@80", 80, time.Minute)
	require.ErrorIs(t, err, boom)

	_, err = rtc.Get(context.Background(), "doc@80", 80, time.Minute)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls, "errors should reach the loader every time")
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	calls := 0
	rtc := newRenderCache(true, &calls, nil)

	for i := 0; i < 3; i++ {
		got, err := rtc.Get(context.Background(), "doc@80", 80, time.Minute)
		require.NoError(t, err)
		require.Equal(t, "rendered", got)
	}
	require.Equal(t, 3, calls)
}
