package service

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
	"github.com/josh-kwaku/wallet-ledger/internal/testutil"
)

func insertNotification(t *testing.T, db *sql.DB, userID uuid.UUID, status domain.NotificationStatus, readAt *time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO notifications (id, user_id, type, status, title, message, read_at)
		 VALUES ($1, $2, 'TRANSACTION', $3, 'Deposit received', '10.00 was deposited to your wallet.', $4)`,
		id, userID, status, readAt,
	)
	require.NoError(t, err)
	return id
}

func notificationStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.NotificationStatus {
	t.Helper()
	var status domain.NotificationStatus
	require.NoError(t, db.QueryRow(`SELECT status FROM notifications WHERE id = $1`, id).Scan(&status))
	return status
}

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db))
	ctx := context.Background()
	user := testutil.SeedTestUser(t, db, "owner@test.com", "Owner")
	other := testutil.SeedTestUser(t, db, "other@test.com", "Other")

	id := insertNotification(t, db, user.ID, domain.NotificationStatusUnread, nil)
	insertNotification(t, db, user.ID, domain.NotificationStatusArchived, nil)

	list, err := svc.List(ctx, user.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Nil(t, list[0].ReadAt)

	err = svc.MarkRead(ctx, other.ID, id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.MarkRead(ctx, user.ID, id))
	require.NoError(t, svc.MarkRead(ctx, user.ID, id))
	assert.Equal(t, domain.NotificationStatusRead, notificationStatus(t, db, id))
}

func TestNotificationArchiver_ArchivesOnlyOldReadNotifications(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNotificationRepository(db)
	archiver := NewNotificationArchiver(repo, slog.Default(), time.Hour, 24*time.Hour)
	user := testutil.SeedTestUser(t, db, "owner@test.com", "Owner")

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	oldRead := insertNotification(t, db, user.ID, domain.NotificationStatusRead, &old)
	recentRead := insertNotification(t, db, user.ID, domain.NotificationStatusRead, &recent)
	unread := insertNotification(t, db, user.ID, domain.NotificationStatusUnread, nil)

	archiver.sweep(context.Background())

	assert.Equal(t, domain.NotificationStatusArchived, notificationStatus(t, db, oldRead))
	assert.Equal(t, domain.NotificationStatusRead, notificationStatus(t, db, recentRead))
	assert.Equal(t, domain.NotificationStatusUnread, notificationStatus(t, db, unread))
}

func TestNotificationArchiver_StopsOnCancel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	archiver := NewNotificationArchiver(repository.NewNotificationRepository(db), slog.Default(), 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		archiver.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("archiver did not stop after cancel")
	}
}
