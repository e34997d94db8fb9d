package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesRequestsPerHost(t *testing.T) {
	t.Parallel()

	// 10 rps with burst 1 means one token every 100ms.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://parlinfo.aph.gov.au/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://parlinfo.aph.gov.au/b"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// Another host has its own bucket.
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.parliament.nz/"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHostOverride(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1, HostRPS: map[string]float64{"lop.parl.ca": 0}})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		start := time.Now()
		require.NoError(t, l.Wait(ctx, "https://LOP.parl.ca/ParlinfoWebAPI"))
		require.Less(t, time.Since(start), 50*time.Millisecond)
	}
}

func TestLimiterWaitCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://example.com"))
}
