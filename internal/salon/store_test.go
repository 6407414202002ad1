package salon

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreReturnsDefaultsWhenUnset(t *testing.T) {
	store := newRedisStore(t)

	settings, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Peluquería Reyna", settings.SalonName)
	assert.Equal(t, "LucIA", settings.AssistantName)
	assert.Equal(t, "Europe/Madrid", settings.Timezone)
	assert.Len(t, settings.Services, 7)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	custom := DefaultSettings()
	custom.SalonName = "Peluquería Sol"
	custom.ClosedStart = "13:30"
	custom.Services = append(custom.Services, Service{Name: "Manicura", DurationMinutes: 30, Price: 15})
	require.NoError(t, store.Set(ctx, custom))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Peluquería Sol", got.SalonName)
	assert.Equal(t, "13:30", got.ClosedStart)
	assert.Len(t, got.Services, 8)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	settings, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Peluquería Reyna", settings.SalonName)

	settings.SalonName = "Otro Salón"
	require.NoError(t, store.Set(ctx, settings))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Otro Salón", got.SalonName)
}

func TestRedisStoreSeededDefaults(t *testing.T) {
	seed := DefaultSettings()
	seed.ClosedStart = "10:00"
	seed.ClosedEnd = "12:00"
	store := newRedisStore(t).WithDefaults(seed)
	ctx := context.Background()

	// While nothing is saved, the seeded profile wins over the built-ins.
	settings, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10:00", settings.ClosedStart)
	assert.Equal(t, "12:00", settings.ClosedEnd)

	w, err := settings.ClosedWindow()
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2025, 12, 23, 10, 30, 0, 0, settings.Location())))
	assert.False(t, w.Contains(time.Date(2025, 12, 23, 14, 30, 0, 0, settings.Location())))

	// A saved profile still takes precedence over the seed.
	custom := DefaultSettings()
	custom.ClosedStart = "13:00"
	require.NoError(t, store.Set(ctx, custom))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "13:00", got.ClosedStart)
}

func TestMemoryStoreSeededDefaults(t *testing.T) {
	seed := DefaultSettings()
	seed.Timezone = "Atlantic/Canary"
	store := NewMemoryStore().WithDefaults(seed)

	settings, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Atlantic/Canary", settings.Timezone)
}

func TestSettingsCatalog(t *testing.T) {
	catalog := DefaultSettings().Catalog()
	assert.Equal(t, 270, catalog.MinutesFor("Keratina (Alisado)"))
	assert.Equal(t, 45, catalog.MinutesFor("corte"))
}

func TestSettingsClosedWindow(t *testing.T) {
	w, err := DefaultSettings().ClosedWindow()
	require.NoError(t, err)
	assert.Equal(t, "14:00-16:00", w.String())
}

func TestSettingsLocationFallsBackToUTC(t *testing.T) {
	s := &Settings{Timezone: "Not/AZone"}
	assert.Equal(t, "UTC", s.Location().String())
}
