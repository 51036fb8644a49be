package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/pkg/jobs"
	"github.com/oasistrek/tourops-api/pkg/notify"
)

type senderStub struct {
	mu       sync.Mutex
	notices  []notify.AssignmentNotice
	failures int
}

func (s *senderStub) Send(_ context.Context, notice notify.AssignmentNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("connection refused")
	}
	s.notices = append(s.notices, notice)
	return nil
}

func (s *senderStub) delivered() []notify.AssignmentNotice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.AssignmentNotice(nil), s.notices...)
}

func startNoticeQueue(t *testing.T, sender *senderStub) *jobs.Queue {
	t.Helper()
	worker := NewNotificationWorker(sender, nil)
	queue := jobs.NewQueue("notices", worker.Handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
	})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	return queue
}

func waitForNotices(t *testing.T, sender *senderStub, want int) []notify.AssignmentNotice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		notices := sender.delivered()
		if len(notices) >= want {
			return notices
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d notices, got %d", want, len(notices))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNotificationServiceDeliversNotice(t *testing.T) {
	sender := &senderStub{}
	queue := startNoticeQueue(t, sender)
	svc := NewNotificationService(queue, nil)

	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	svc.AssignmentCreated(context.Background(), &models.TourAssignment{
		ID:        "as-1",
		TouristID: "t1",
		GuideID:   "g1",
		TourName:  "Wadi Rum Classic",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 7),
	})

	notices := waitForNotices(t, sender, 1)
	assert.Equal(t, "t1", notices[0].TouristID)
	assert.Equal(t, "g1", notices[0].GuideID)
	assert.Equal(t, "2026-03-14", notices[0].StartDate)
	assert.Equal(t, "2026-03-21", notices[0].EndDate)
}

func TestNotificationServiceRetriesTransientFailure(t *testing.T) {
	sender := &senderStub{failures: 2}
	queue := startNoticeQueue(t, sender)
	svc := NewNotificationService(queue, nil)

	svc.AssignmentCreated(context.Background(), &models.TourAssignment{ID: "as-1", TouristID: "t1", GuideID: "g1", TourName: "Petra by Night"})

	notices := waitForNotices(t, sender, 1)
	require.Len(t, notices, 1)
}

func TestNotificationServiceNilIsSafe(t *testing.T) {
	var svc *NotificationService
	svc.AssignmentCreated(context.Background(), &models.TourAssignment{ID: "as-1"})
}

func TestNotificationWorkerDropsUnknownPayload(t *testing.T) {
	sender := &senderStub{}
	worker := NewNotificationWorker(sender, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "j1", Payload: "not a notice"})
	require.NoError(t, err)
	assert.Empty(t, sender.delivered())
}
