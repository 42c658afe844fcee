package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/tests/testutil"
)

func TestReplaceAndGetKeepsOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	in := []model.Notification{
		testutil.Notification("c", false, 3),
		testutil.Targeted(testutil.Notification("b", true, 2), "cust-9"),
		testutil.Notification("a", false, 1),
	}
	require.NoError(t, s.ReplaceNotifications(ctx, "user-1", in))

	got, err := s.GetNotifications(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, testutil.IDs(got))

	assert.True(t, got[0].IsBroadcast())
	require.NotNil(t, got[1].RecipientID)
	assert.Equal(t, "cust-9", *got[1].RecipientID)
	assert.True(t, got[1].IsRead)
	assert.False(t, got[2].IsRead)
	assert.WithinDuration(t, in[2].CreatedAt, got[2].CreatedAt, time.Second)
}

func TestReplaceDropsPreviousEntries(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceNotifications(ctx, "user-1", []model.Notification{
		testutil.Notification("old", false, 1),
	}))
	require.NoError(t, s.ReplaceNotifications(ctx, "user-1", []model.Notification{
		testutil.Notification("new", false, 2),
	}))

	got, err := s.GetNotifications(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, testutil.IDs(got))
}

func TestUpsertPrependsAndDeduplicates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceNotifications(ctx, "user-1", []model.Notification{
		testutil.Notification("b", false, 2),
		testutil.Notification("a", false, 1),
	}))

	require.NoError(t, s.UpsertNotification(ctx, "user-1", testutil.Notification("c", false, 3)))
	require.NoError(t, s.UpsertNotification(ctx, "user-1", testutil.Notification("d", false, 4)))

	updated := testutil.Notification("b", true, 2)
	updated.Title = "Delivered"
	require.NoError(t, s.UpsertNotification(ctx, "user-1", updated))

	got, err := s.GetNotifications(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, testutil.IDs(got))
	assert.Equal(t, "Delivered", got[2].Title)
	assert.True(t, got[2].IsRead)
}

func TestMarkReadAndClearAreScopedToUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceNotifications(ctx, "user-1", []model.Notification{
		testutil.Notification("n1", false, 1),
	}))
	require.NoError(t, s.ReplaceNotifications(ctx, "user-2", []model.Notification{
		testutil.Notification("n1", false, 1),
	}))

	require.NoError(t, s.MarkNotificationRead(ctx, "user-1", "n1", true))

	mine, err := s.GetNotifications(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsRead)

	theirs, err := s.GetNotifications(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].IsRead)

	require.NoError(t, s.MarkNotificationRead(ctx, "user-1", "n1", false))
	mine, err = s.GetNotifications(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, mine[0].IsRead)

	require.NoError(t, s.ClearUser(ctx, "user-1"))
	mine, err = s.GetNotifications(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err = s.GetNotifications(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}
