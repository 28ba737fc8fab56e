package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeExchanger counts refresh calls and optionally blocks until released.
type fakeExchanger struct {
	calls   atomic.Int32
	resp    *TokenResponse
	err     error
	release chan struct{}
	gotRT   atomic.Value
}

func (f *fakeExchanger) Exchange(context.Context, string, string) (*TokenResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	f.calls.Add(1)
	f.gotRT.Store(refreshToken)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func storeExpiringIn(d time.Duration) *MemoryStore {
	return NewMemoryStore(&Credential{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    baseTime.Add(d),
	})
}

func newTestRefresher(store Store, ex Exchanger) *Refresher {
	return NewRefresher(store, ex, WithClock(func() time.Time { return baseTime }))
}

func TestRefresher_ProactiveWindow(t *testing.T) {
	tests := []struct {
		name        string
		expiresIn   time.Duration
		wantToken   string
		wantRefresh int32
	}{
		{"ten minutes left", 10 * time.Minute, "old-access", 0},
		{"four minutes left", 4 * time.Minute, "new-access", 1},
		{"already expired", -time.Minute, "new-access", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExchanger{resp: &TokenResponse{AccessToken: "new-access", ExpiresIn: 3600}}
			r := newTestRefresher(storeExpiringIn(tt.expiresIn), ex)

			got, err := r.AccessToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, got)
			assert.Equal(t, tt.wantRefresh, ex.calls.Load())
		})
	}
}

func TestRefresher_SingleFlight(t *testing.T) {
	ex := &fakeExchanger{
		resp:    &TokenResponse{AccessToken: "new-access", ExpiresIn: 3600},
		release: make(chan struct{}),
	}
	r := newTestRefresher(storeExpiringIn(time.Minute), ex)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.AccessToken(context.Background())
		}(i)
	}

	// Let every caller join the flight before the exchange completes.
	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	assert.Equal(t, int32(1), ex.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", results[i])
	}
}

func TestRefresher_SecondCallAfterRefreshUsesStore(t *testing.T) {
	ex := &fakeExchanger{resp: &TokenResponse{AccessToken: "new-access", ExpiresIn: 3600}}
	r := newTestRefresher(storeExpiringIn(time.Minute), ex)

	for range 3 {
		got, err := r.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new-access", got)
	}
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestRefresher_RetainsRefreshToken(t *testing.T) {
	tests := []struct {
		name        string
		returned    string
		wantRefresh string
	}{
		{"omitted", "", "old-refresh"},
		{"rotated", "new-refresh", "new-refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeExpiringIn(time.Minute)
			ex := &fakeExchanger{resp: &TokenResponse{
				AccessToken:  "new-access",
				RefreshToken: tt.returned,
				ExpiresIn:    3600,
			}}
			r := newTestRefresher(store, ex)

			_, err := r.AccessToken(context.Background())
			require.NoError(t, err)

			cred, err := store.Load(context.Background())
			require.NoError(t, err)
			require.NotNil(t, cred)
			assert.Equal(t, "new-access", cred.AccessToken)
			assert.Equal(t, tt.wantRefresh, cred.RefreshToken)
			assert.Equal(t, baseTime.Add(time.Hour), cred.ExpiresAt)
			assert.Equal(t, "old-refresh", ex.gotRT.Load())
		})
	}
}

func TestRefresher_FailureClearsStore(t *testing.T) {
	tests := []struct {
		name  string
		cred  *Credential
		ex    *fakeExchanger
		calls int32
	}{
		{
			name:  "intermediary error",
			cred:  &Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: baseTime},
			ex:    &fakeExchanger{err: &IntermediaryError{StatusCode: 400, Message: "invalid_grant"}},
			calls: 1,
		},
		{
			name:  "empty access token",
			cred:  &Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: baseTime},
			ex:    &fakeExchanger{resp: &TokenResponse{ExpiresIn: 3600}},
			calls: 1,
		},
		{
			name:  "no refresh token",
			cred:  &Credential{AccessToken: "a", ExpiresAt: baseTime},
			ex:    &fakeExchanger{},
			calls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(tt.cred)
			r := newTestRefresher(store, tt.ex)

			_, err := r.AccessToken(context.Background())
			require.ErrorIs(t, err, ErrRefreshFailed)
			assert.Equal(t, tt.calls, tt.ex.calls.Load())

			cred, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Nil(t, cred, "store should be cleared")

			_, err = r.AccessToken(context.Background())
			assert.ErrorIs(t, err, ErrNoCredential)
		})
	}
}

func TestRefresher_NoCredential(t *testing.T) {
	r := newTestRefresher(NewMemoryStore(nil), &fakeExchanger{})

	_, err := r.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestRefresher_CallerCancelDoesNotCancelExchange(t *testing.T) {
	store := storeExpiringIn(time.Minute)
	ex := &fakeExchanger{
		resp:    &TokenResponse{AccessToken: "new-access", ExpiresIn: 3600},
		release: make(chan struct{}),
	}
	r := newTestRefresher(store, ex)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.AccessToken(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(ex.release)
	require.Eventually(t, func() bool {
		cred, _ := store.Load(context.Background())
		return cred != nil && cred.AccessToken == "new-access"
	}, time.Second, time.Millisecond)
}
