package kvcache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Ratio1/kvcache_sdk_go/pkg/kvcache"
	"github.com/Ratio1/kvcache_sdk_go/pkg/kvcache/mock"
)

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newObservedClient(t *testing.T, b kvcache.Backend) (*kvcache.Client, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	client := kvcache.NewWithBackend(b, kvcache.WithLogger(zap.New(core)))
	t.Cleanup(func() { _ = client.Close() })
	return client, logs
}

func TestGetJSONScenarios(t *testing.T) {
	ctx := context.Background()
	client, logs := newObservedClient(t, mock.New())

	require.NoError(t, client.Set(ctx, "k1", []byte(`{"name":"test","value":123}`), nil))
	require.NoError(t, client.Set(ctx, "k3", []byte("not-json"), nil))

	got := kvcache.GetJSON[sample](ctx, client, "k1")
	require.NotNil(t, got)
	assert.Equal(t, sample{Name: "test", Value: 123}, *got)

	assert.Nil(t, kvcache.GetJSON[sample](ctx, client, "k2"))

	assert.NotPanics(t, func() {
		assert.Nil(t, kvcache.GetJSON[sample](ctx, client, "k3"))
	})
	warnings := logs.FilterMessage("kvcache: discarding malformed JSON payload").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, "k3", warnings[0].ContextMap()["key"])
}

func TestLookupStatus(t *testing.T) {
	ctx := context.Background()
	client, _ := newObservedClient(t, mock.New())

	require.NoError(t, client.Set(ctx, "hit", []byte(` {"name":"a","value":1} `), nil))
	require.NoError(t, client.Set(ctx, "null", []byte("null"), nil))
	require.NoError(t, client.Set(ctx, "empty", []byte(""), nil))
	require.NoError(t, client.Set(ctx, "corrupt", []byte("{"), nil))
	require.NoError(t, client.Set(ctx, "wrong-type", []byte(`"string"`), nil))

	tests := []struct {
		key    string
		status kvcache.Status
		hasErr bool
	}{
		{key: "hit", status: kvcache.StatusHit},
		{key: "missing", status: kvcache.StatusMiss},
		{key: "null", status: kvcache.StatusMiss},
		{key: "empty", status: kvcache.StatusMiss},
		{key: "corrupt", status: kvcache.StatusCorrupt, hasErr: true},
		{key: "wrong-type", status: kvcache.StatusCorrupt, hasErr: true},
		{key: "", status: kvcache.StatusMiss, hasErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("key=%q", tt.key), func(t *testing.T) {
			res := kvcache.Lookup[sample](ctx, client, tt.key)
			assert.Equal(t, tt.key, res.Key)
			assert.Equal(t, tt.status, res.Status, "status %s", res.Status)
			assert.Equal(t, tt.hasErr, res.Err != nil)
			assert.Equal(t, tt.status == kvcache.StatusHit, res.Found())
			if res.Found() {
				assert.Equal(t, &sample{Name: "a", Value: 1}, res.Ptr())
			} else {
				assert.Nil(t, res.Ptr())
			}
		})
	}

	assert.ErrorIs(t, kvcache.Lookup[sample](ctx, client, "").Err, kvcache.ErrKeyRequired)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := newObservedClient(t, mock.New())

	type nested struct {
		Tags   []string          `json:"tags"`
		Attrs  map[string]string `json:"attrs"`
		Inner  *sample           `json:"inner"`
		Markup string            `json:"markup"`
	}
	want := nested{
		Tags:   []string{"a", "b"},
		Attrs:  map[string]string{"x": "1"},
		Inner:  &sample{Name: "inner", Value: -7},
		Markup: "<b>&</b>",
	}
	require.NoError(t, kvcache.SetJSON(ctx, client, "nested", want, nil))

	got := kvcache.GetJSON[nested](ctx, client, "nested")
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	raw, err := client.GetRaw(ctx, "nested")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<b>&</b>", "HTML escaping should be disabled")

	generic := kvcache.GetJSON[map[string]any](ctx, client, "nested")
	require.NotNil(t, generic)
	assert.Equal(t, []any{"a", "b"}, (*generic)["tags"])
}

func TestLookupDoesNotMutateStoredValue(t *testing.T) {
	ctx := context.Background()
	client, _ := newObservedClient(t, mock.New())
	payload := []byte(`{"name":"keep","value":5}`)
	require.NoError(t, client.Set(ctx, "k", payload, nil))

	res := kvcache.Lookup[sample](ctx, client, "k")
	require.True(t, res.Found())
	res.Value.Name = "changed"

	raw, err := client.GetRaw(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, payload, raw)
}

func TestLookupMany(t *testing.T) {
	ctx := context.Background()
	client, _ := newObservedClient(t, mock.New())

	keys := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("item:%02d", i)
		keys = append(keys, key)
		if i%2 == 0 {
			require.NoError(t, kvcache.SetJSON(ctx, client, key, sample{Name: key, Value: i}, nil))
		}
	}

	results := kvcache.LookupMany[sample](ctx, client, keys, 4)
	require.Len(t, results, len(keys))
	for i, res := range results {
		assert.Equal(t, keys[i], res.Key)
		if i%2 == 0 {
			require.Equal(t, kvcache.StatusHit, res.Status)
			assert.Equal(t, i, res.Value.Value)
		} else {
			assert.Equal(t, kvcache.StatusMiss, res.Status)
		}
	}

	assert.Empty(t, kvcache.LookupMany[sample](ctx, client, nil, 0))
}

type failingBackend struct {
	*mock.Mock
	err error
}

func (b failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, b.err
}

func TestLookupUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	client, logs := newObservedClient(t, failingBackend{Mock: mock.New(), err: boom})
	ctx := context.Background()

	res := kvcache.Lookup[sample](ctx, client, "k1")
	assert.Equal(t, kvcache.StatusUnavailable, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.Nil(t, kvcache.GetJSON[sample](ctx, client, "k1"))
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	_, err := client.GetRaw(ctx, "k1")
	assert.ErrorIs(t, err, boom)
}

func TestLookupCanceledContext(t *testing.T) {
	client, _ := newObservedClient(t, mock.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := kvcache.Lookup[sample](ctx, client, "k1")
	assert.Equal(t, kvcache.StatusUnavailable, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestKeyOperations(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := mock.New(mock.WithClock(func() time.Time { return now }))
	client, _ := newObservedClient(t, store)
	ctx := context.Background()

	require.NoError(t, kvcache.SetJSON(ctx, client, "session", sample{Name: "s"}, &kvcache.SetOptions{TTL: time.Minute}))
	require.NoError(t, kvcache.SetJSON(ctx, client, "forever", sample{Name: "f"}, nil))

	ttl, err := client.TTL(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	ttl, err = client.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, kvcache.NoExpiry, ttl)

	_, err = client.TTL(ctx, "missing")
	assert.ErrorIs(t, err, kvcache.ErrNotFound)

	ok, err := client.Expire(ctx, "forever", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.Expire(ctx, "missing", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = client.Expire(ctx, "forever", 0)
	assert.Error(t, err)

	now = now.Add(30 * time.Second)
	exists, err := client.Exists(ctx, "forever")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NotNil(t, kvcache.GetJSON[sample](ctx, client, "session"))

	now = now.Add(31 * time.Second)
	assert.Nil(t, kvcache.GetJSON[sample](ctx, client, "session"))

	require.NoError(t, client.Set(ctx, "a", []byte("1"), nil))
	require.NoError(t, client.Set(ctx, "b", []byte("2"), nil))
	n, err := client.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = client.Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = client.GetRaw(ctx, "a")
	assert.ErrorIs(t, err, kvcache.ErrNotFound)

	assert.Error(t, client.Set(ctx, "neg", []byte("1"), &kvcache.SetOptions{TTL: -time.Second}))
	assert.ErrorIs(t, client.Set(ctx, "", []byte("1"), nil), kvcache.ErrKeyRequired)
	assert.ErrorIs(t, kvcache.SetJSON(ctx, client, "", 1, nil), kvcache.ErrKeyRequired)
	assert.Error(t, kvcache.SetJSON(ctx, client, "chan", make(chan int), nil))
}

func TestClosedClient(t *testing.T) {
	client := kvcache.NewWithBackend(mock.New())
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	ctx := context.Background()
	res := kvcache.Lookup[sample](ctx, client, "k")
	assert.Equal(t, kvcache.StatusUnavailable, res.Status)
	assert.ErrorIs(t, res.Err, kvcache.ErrClosed)
	assert.ErrorIs(t, client.Ping(ctx), kvcache.ErrClosed)
	assert.ErrorIs(t, client.Set(ctx, "k", nil, nil), kvcache.ErrClosed)
}

func TestNilClient(t *testing.T) {
	var client *kvcache.Client
	res := kvcache.Lookup[sample](context.Background(), client, "k")
	assert.Equal(t, kvcache.StatusUnavailable, res.Status)
	assert.Error(t, res.Err)
	assert.NoError(t, client.Close())

	assert.Nil(t, kvcache.GetJSON[sample](context.Background(), kvcache.NewWithBackend(nil), "k"))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "hit", kvcache.StatusHit.String())
	assert.Equal(t, "miss", kvcache.StatusMiss.String())
	assert.Equal(t, "corrupt", kvcache.StatusCorrupt.String())
	assert.Equal(t, "unavailable", kvcache.StatusUnavailable.String())
	assert.Equal(t, "unknown", kvcache.Status(42).String())
}
