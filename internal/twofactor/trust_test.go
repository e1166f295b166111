package twofactor

import (
	"testing"
	"time"

	"helpdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestTrustStore(db *gorm.DB, clock *time.Time) *TrustStore {
	return &TrustStore{
		DB:   db,
		Salt: "trust-test-salt",
		TTL:  30 * 24 * time.Hour,
		Now:  func() time.Time { return *clock },
	}
}

// TestTrustStore covers the remembered-device lifecycle.
func TestTrustStore(t *testing.T) {
	t.Run("should derive a stable fingerprint per user agent", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		first := store.Fingerprint(engineTestUA)
		second := store.Fingerprint(engineTestUA)
		other := store.Fingerprint("curl/8.5.0")

		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
		assert.Len(t, first, 64, "fingerprint should be a hex sha256")
	})

	t.Run("should salt the fingerprint", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)
		otherSalt := &TrustStore{DB: db, Salt: "different-salt", TTL: store.TTL}

		assert.NotEqual(t, store.Fingerprint(engineTestUA), otherSalt.Fingerprint(engineTestUA))
	})

	t.Run("should trust a device and recognize it afterwards", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		fingerprint := store.Fingerprint(engineTestUA)

		device, err := store.Trust(userID, fingerprint, engineTestIP, engineTestUA)
		require.NoError(t, err)
		assert.Equal(t, clock.Add(store.TTL), device.ExpiresAt)

		trusted, err := store.IsTrusted(userID, fingerprint, engineTestIP)
		require.NoError(t, err)
		assert.True(t, trusted)
	})

	t.Run("should keep trusting a device when the usage stamp cannot be written", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		fingerprint := store.Fingerprint(engineTestUA)
		_, err := store.Trust(userID, fingerprint, engineTestIP, engineTestUA)
		require.NoError(t, err)

		require.NoError(t, db.Exec(
			`CREATE TRIGGER block_device_updates BEFORE UPDATE ON trusted_devices
			 BEGIN SELECT RAISE(ABORT, 'updates blocked'); END`,
		).Error)

		trusted, err := store.IsTrusted(userID, fingerprint, engineTestIP)
		require.NoError(t, err)
		assert.True(t, trusted)
	})

	t.Run("should reject a trusted fingerprint from another IP", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		fingerprint := store.Fingerprint(engineTestUA)
		_, err := store.Trust(userID, fingerprint, engineTestIP, engineTestUA)
		require.NoError(t, err)

		trusted, err := store.IsTrusted(userID, fingerprint, "198.51.100.9")
		require.NoError(t, err)
		assert.False(t, trusted)
	})

	t.Run("should not trust an unknown device", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		trusted, err := store.IsTrusted(uuid.New(), store.Fingerprint(engineTestUA), engineTestIP)
		require.NoError(t, err)
		assert.False(t, trusted)
	})

	t.Run("should expire trust after the TTL", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		fingerprint := store.Fingerprint(engineTestUA)
		_, err := store.Trust(userID, fingerprint, engineTestIP, engineTestUA)
		require.NoError(t, err)

		clock = clock.Add(store.TTL + time.Second)

		trusted, err := store.IsTrusted(userID, fingerprint, engineTestIP)
		require.NoError(t, err)
		assert.False(t, trusted)
	})

	t.Run("should extend the window and rebind the IP on re-trust", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		fingerprint := store.Fingerprint(engineTestUA)
		_, err := store.Trust(userID, fingerprint, engineTestIP, engineTestUA)
		require.NoError(t, err)

		clock = clock.Add(20 * 24 * time.Hour)
		_, err = store.Trust(userID, fingerprint, "198.51.100.9", engineTestUA)
		require.NoError(t, err)

		devices, err := store.List(userID)
		require.NoError(t, err)
		require.Len(t, devices, 1, "re-trusting the same device must not create a second row")
		assert.Equal(t, "198.51.100.9", devices[0].IPAddress)
		assert.WithinDuration(t, clock.Add(store.TTL), devices[0].ExpiresAt, time.Second)

		trusted, err := store.IsTrusted(userID, fingerprint, engineTestIP)
		require.NoError(t, err)
		assert.False(t, trusted, "old IP should no longer be trusted")
	})

	t.Run("should list devices most recently used first", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		_, err := store.Trust(userID, store.Fingerprint("laptop"), engineTestIP, "laptop")
		require.NoError(t, err)

		clock = clock.Add(time.Hour)
		_, err = store.Trust(userID, store.Fingerprint("phone"), engineTestIP, "phone")
		require.NoError(t, err)

		devices, err := store.List(userID)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "phone", devices[0].UserAgent)
		assert.Equal(t, "laptop", devices[1].UserAgent)
	})

	t.Run("should revoke a single device scoped to its owner", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		owner := uuid.New()
		stranger := uuid.New()
		device, err := store.Trust(owner, store.Fingerprint(engineTestUA), engineTestIP, engineTestUA)
		require.NoError(t, err)

		affected, err := store.Revoke(stranger, device.ID)
		require.NoError(t, err)
		assert.Zero(t, affected, "another user must not be able to revoke the device")

		affected, err = store.Revoke(owner, device.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, affected)

		trusted, err := store.IsTrusted(owner, device.Fingerprint, engineTestIP)
		require.NoError(t, err)
		assert.False(t, trusted)
	})

	t.Run("should revoke all devices for a user", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		_, err := store.Trust(userID, store.Fingerprint("laptop"), engineTestIP, "laptop")
		require.NoError(t, err)
		_, err = store.Trust(userID, store.Fingerprint("phone"), engineTestIP, "phone")
		require.NoError(t, err)

		affected, err := store.RevokeAll(userID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, affected)

		devices, err := store.List(userID)
		require.NoError(t, err)
		assert.Empty(t, devices)
	})

	t.Run("should sweep only expired rows", func(t *testing.T) {
		db := openTestDB(t)
		clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		store := newTestTrustStore(db, &clock)

		userID := uuid.New()
		expired := models.TrustedDevice{
			ID:          uuid.New(),
			UserID:      userID,
			Fingerprint: store.Fingerprint("old-laptop"),
			IPAddress:   engineTestIP,
			UserAgent:   "old-laptop",
			ExpiresAt:   clock.Add(-time.Hour),
			LastUsedAt:  clock.Add(-48 * time.Hour),
		}
		require.NoError(t, db.Create(&expired).Error)
		_, err := store.Trust(userID, store.Fingerprint("phone"), engineTestIP, "phone")
		require.NoError(t, err)

		swept, err := store.DeleteExpired(clock)
		require.NoError(t, err)
		assert.EqualValues(t, 1, swept)

		devices, err := store.List(userID)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "phone", devices[0].UserAgent)
	})
}
