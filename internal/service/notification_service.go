package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/hr-admin-api/pkg/jobs"
	"github.com/noah-isme/hr-admin-api/pkg/mailer"
)

const (
	subjectSetPassword   = "Set Your Password"
	subjectResetPassword = "Reset Your Password"

	mailJobType = "mail"
)

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
	Link(path, token string) string
}

type retryQueue interface {
	TryEnqueue(job jobs.Job) error
}

// Recipient is one employee receiving a token email.
type Recipient struct {
	Email string
	Name  string
	Token string
}

// DeliveryReport summarises a fan-out of emails.
type DeliveryReport struct {
	Sent     int      `json:"sent"`
	Failed   []string `json:"failed,omitempty"`
	Requeued int      `json:"requeued"`
}

// NotificationConfig tunes mail dispatch.
type NotificationConfig struct {
	Concurrency   int
	ActivationTTL time.Duration
	ResetTTL      time.Duration
}

// NotificationService sends activation and reset emails. Failed sends are
// pushed to a retry queue when one is attached.
type NotificationService struct {
	sender  mailSender
	queue   retryQueue
	metrics *MetricsService
	logger  *zap.Logger
	cfg     NotificationConfig
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(sender mailSender, queue retryQueue, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &NotificationService{sender: sender, queue: queue, metrics: metrics, logger: logger, cfg: cfg}
}

// AttachQueue sets the retry queue after construction, since the queue handler
// itself points back at the service.
func (s *NotificationService) AttachQueue(queue retryQueue) {
	s.queue = queue
}

// SendActivations emails a set-password link to every recipient concurrently
// and waits for all of them. Individual failures never abort the others.
func (s *NotificationService) SendActivations(ctx context.Context, recipients []Recipient) DeliveryReport {
	var (
		mu     sync.Mutex
		report DeliveryReport
	)
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, r := range recipients {
		msg := s.activationMessage(r)
		g.Go(func() error {
			err := s.deliver(ctx, msg)
			requeued := err != nil && s.requeue(msg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, msg.To)
				if requeued {
					report.Requeued++
				}
				return nil
			}
			report.Sent++
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(report.Failed)
	return report
}

// SendPasswordReset emails a reset link. A failed send is queued for retry
// and only reported when it could not be queued either.
func (s *NotificationService) SendPasswordReset(ctx context.Context, r Recipient) error {
	msg := mailer.Message{
		To:       r.Email,
		Subject:  subjectResetPassword,
		Template: mailer.TemplateResetPassword,
		Data: mailer.TemplateData{
			Name:      r.Name,
			Token:     r.Token,
			Link:      s.sender.Link("reset-password", r.Token),
			ExpiresIn: s.cfg.ResetTTL.String(),
		},
	}
	if err := s.deliver(ctx, msg); err != nil {
		if s.requeue(msg) {
			return nil
		}
		return err
	}
	return nil
}

// HandleRetry is the retry queue handler.
func (s *NotificationService) HandleRetry(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		s.logger.Error("dropping mail job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.deliver(ctx, msg)
}

// DeadLetter logs a message that exhausted its retries.
func (s *NotificationService) DeadLetter(job jobs.Job, err error) {
	s.logger.Error("mail delivery abandoned", zap.String("to", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}

func (s *NotificationService) activationMessage(r Recipient) mailer.Message {
	return mailer.Message{
		To:       r.Email,
		Subject:  subjectSetPassword,
		Template: mailer.TemplateSetPassword,
		Data: mailer.TemplateData{
			Name:      r.Name,
			Token:     r.Token,
			Link:      s.sender.Link("set-password", r.Token),
			ExpiresIn: s.cfg.ActivationTTL.String(),
		},
	}
}

func (s *NotificationService) deliver(ctx context.Context, msg mailer.Message) error {
	err := s.sender.Send(ctx, msg)
	s.metrics.RecordMail(msg.Template, err)
	if err != nil {
		s.logger.Warn("mail delivery failed", zap.String("to", msg.To), zap.String("template", msg.Template), zap.Error(err))
		return fmt.Errorf("send %s to %s: %w", msg.Template, msg.To, err)
	}
	return nil
}

func (s *NotificationService) requeue(msg mailer.Message) bool {
	if s.queue == nil {
		return false
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: msg.To, Type: mailJobType, Payload: msg}); err != nil {
		s.logger.Warn("mail retry not queued", zap.String("to", msg.To), zap.Error(err))
		return false
	}
	return true
}
