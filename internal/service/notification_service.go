package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/pkg/jobs"
	"github.com/oasistrek/tourops-api/pkg/notify"
)

type noticeSender interface {
	Send(ctx context.Context, notice notify.AssignmentNotice) error
}

type noticeDispatcher interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// NotificationWorker processes queued assignment notices. Wire its Handle
// method into the jobs queue.
type NotificationWorker struct {
	sender noticeSender
	logger *zap.Logger
}

// NewNotificationWorker constructs a worker delivering through the sender.
func NewNotificationWorker(sender noticeSender, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{sender: sender, logger: logger}
}

// Handle delivers one queued notice. Returning an error lets the queue
// retry; a malformed payload is dropped instead since retrying cannot fix it.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(notify.AssignmentNotice)
	if !ok {
		w.logger.Error("dropping notice with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return w.sender.Send(ctx, notice)
}

// NotificationService queues assignment notices for webhook delivery.
// Delivery is best-effort: assignment creation already succeeded, so
// terminal failures are logged by the queue and never surfaced.
type NotificationService struct {
	queue  noticeDispatcher
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(queue noticeDispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// AssignmentCreated enqueues a notice for a fresh assignment. Safe on a nil
// receiver, which is how the service behaves when no webhook endpoint is
// configured.
func (s *NotificationService) AssignmentCreated(ctx context.Context, assignment *models.TourAssignment) {
	if s == nil || assignment == nil {
		return
	}
	notice := notify.AssignmentNotice{
		TouristID: assignment.TouristID,
		GuideID:   assignment.GuideID,
		TourName:  assignment.TourName,
		StartDate: assignment.StartDate.UTC().Format("2006-01-02"),
		EndDate:   assignment.EndDate.UTC().Format("2006-01-02"),
	}
	job := jobs.Job{ID: assignment.ID, Type: "assignment_notice", Payload: notice}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("failed to enqueue assignment notice", zap.String("assignment_id", assignment.ID), zap.Error(err))
	}
}
