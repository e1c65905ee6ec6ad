package broadcast

import (
	"testing"
	"time"

	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

func TestSubscribeWithNoPriorSnapshotReceivesNothingImmediately(t *testing.T) {
	hub := New("run1")
	sub := hub.Subscribe()
	defer sub.Close()

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event before any publish: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeAfterCoverageReceivesImmediateSnapshot(t *testing.T) {
	hub := New("run1")
	hub.PublishCoverage(model.CoverageSnapshot{RunID: "run1", PagesCrawled: 5})

	sub := hub.Subscribe()
	defer sub.Close()

	ev := <-sub.Events()
	require.Equal(t, model.EventCoverageUpdate, ev.Kind)
	require.Equal(t, 5, ev.Coverage.PagesCrawled)
}

func TestPublishCoverageFansOutToAllSubscribers(t *testing.T) {
	hub := New("run1")
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	hub.PublishCoverage(model.CoverageSnapshot{RunID: "run1", PagesCrawled: 1})

	evA := <-a.Events()
	evB := <-b.Events()
	require.Equal(t, 1, evA.Coverage.PagesCrawled)
	require.Equal(t, 1, evB.Coverage.PagesCrawled)
}

func TestPublishCrawlEventCarriesSubKindAndMessage(t *testing.T) {
	hub := New("run1")
	sub := hub.Subscribe()
	defer sub.Close()

	hub.PublishCrawlEvent(model.QualityPlateauDetected, "plateau reached", map[string]any{"pages": 42})

	ev := <-sub.Events()
	require.Equal(t, model.EventCrawlEvent, ev.Kind)
	require.Equal(t, model.QualityPlateauDetected, ev.CrawlEventType)
	require.Equal(t, "plateau reached", ev.Message)
	require.Equal(t, 42, ev.Detail["pages"])
}

func TestCloseUnsubscribesAndClosesChannel(t *testing.T) {
	hub := New("run1")
	sub := hub.Subscribe()
	sub.Close()

	require.Equal(t, 0, hub.SubscriberCount())
	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestSlowSubscriberDropsEventsWithoutBlockingPublish(t *testing.T) {
	hub := New("run1")
	sub := hub.Subscribe()
	defer sub.Close()

	for i := 0; i < subscriberBufferSize+10; i++ {
		hub.PublishCrawlEvent(model.CrawlError, "err", nil)
	}

	require.LessOrEqual(t, len(sub.Events()), subscriberBufferSize)
}

func TestCloseAllClosesEverySubscriber(t *testing.T) {
	hub := New("run1")
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.CloseAll()

	_, okA := <-a.Events()
	_, okB := <-b.Events()
	require.False(t, okA)
	require.False(t, okB)
	require.Equal(t, 0, hub.SubscriberCount())
}
