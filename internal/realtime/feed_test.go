package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
)

func newTestFeed(t *testing.T) *Feed {
	feed := New(Config{DebounceWindow: 10 * time.Millisecond})
	feed.Start(context.Background())
	t.Cleanup(feed.Stop)
	return feed
}

func receiveUpdates(t *testing.T, ch <-chan []models.CollectionUpdate) []models.CollectionUpdate {
	t.Helper()
	select {
	case updates := <-ch:
		return updates
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for collection updates")
		return nil
	}
}

func TestFeedCoalescesBursts(t *testing.T) {
	feed := New(Config{DebounceWindow: 100 * time.Millisecond})
	feed.Start(context.Background())
	t.Cleanup(feed.Stop)
	ch, unsubscribe := feed.Subscribe()
	defer unsubscribe()

	feed.Publish(models.ChangeEvent{Table: models.TableAssignments, Action: models.ChangeActionInsert, EntityID: "a1"})
	feed.Publish(models.ChangeEvent{Table: models.TableAssignments, Action: models.ChangeActionUpdate, EntityID: "a1"})
	feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: "g1"})

	updates := receiveUpdates(t, ch)
	require.Equal(t, []models.CollectionUpdate{
		{Collection: models.CollectionAssignments, Version: 2},
		{Collection: models.CollectionGuides, Version: 1},
		{Collection: models.CollectionTourists, Version: 2},
	}, updates)
}

func TestFeedVersionsAreMonotonic(t *testing.T) {
	feed := newTestFeed(t)
	ch, unsubscribe := feed.Subscribe()
	defer unsubscribe()

	feed.Publish(models.ChangeEvent{Table: models.TableGuideRequests, Action: models.ChangeActionInsert, EntityID: "r1"})
	first := receiveUpdates(t, ch)
	require.Len(t, first, 1)
	assert.Equal(t, models.CollectionRequests, first[0].Collection)

	feed.Publish(models.ChangeEvent{Table: models.TableGuideRequests, Action: models.ChangeActionUpdate, EntityID: "r1"})
	second := receiveUpdates(t, ch)
	require.Len(t, second, 1)
	assert.Greater(t, second[0].Version, first[0].Version)
	assert.Equal(t, second[0].Version, feed.Version(models.CollectionRequests))
}

func TestFeedOnlyTouristProfilesCount(t *testing.T) {
	feed := newTestFeed(t)

	feed.Publish(models.ChangeEvent{Table: models.TableProfiles, Action: models.ChangeActionUpdate, EntityID: "p1", UserType: "staff"})
	assert.Equal(t, uint64(0), feed.Version(models.CollectionTourists))

	feed.Publish(models.ChangeEvent{Table: models.TableProfiles, Action: models.ChangeActionUpdate, EntityID: "p2", UserType: models.UserTypeTourist})
	assert.Equal(t, uint64(1), feed.Version(models.CollectionTourists))
}

func TestFeedSnapshotCoversWatchedCollections(t *testing.T) {
	feed := New(Config{})
	feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionInsert, EntityID: "g1"})

	snapshot := feed.Snapshot()
	require.Len(t, snapshot, 4)
	byCollection := make(map[models.Collection]uint64, len(snapshot))
	for _, update := range snapshot {
		byCollection[update.Collection] = update.Version
	}
	assert.Equal(t, uint64(1), byCollection[models.CollectionGuides])
	assert.Equal(t, uint64(0), byCollection[models.CollectionTourists])
}

func TestFeedUnsubscribeClosesChannel(t *testing.T) {
	feed := newTestFeed(t)
	ch, unsubscribe := feed.Subscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	// A second call must not panic.
	unsubscribe()
}

func TestFeedNilIsSafe(t *testing.T) {
	var feed *Feed
	feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionInsert, EntityID: "g1"})
	assert.Equal(t, uint64(0), feed.Version(models.CollectionGuides))
}
