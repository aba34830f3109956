package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/pkg/jobs"
	"github.com/noah-isme/hr-admin-api/pkg/mailer"
)

type mockMailer struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failOn map[string]bool
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[msg.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) Link(path, token string) string {
	return "https://hr.example.com/" + path + "?token=" + token
}

func (m *mockMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

type mockRetryQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *mockRetryQueue) TryEnqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestSendActivationsFanOut(t *testing.T) {
	sender := &mockMailer{failOn: map[string]bool{"b@example.com": true}}
	queue := &mockRetryQueue{}
	metrics := NewMetricsService()
	svc := NewNotificationService(sender, queue, metrics, zap.NewNop(), NotificationConfig{Concurrency: 2, ActivationTTL: 72 * time.Hour})

	report := svc.SendActivations(context.Background(), []Recipient{
		{Email: "a@example.com", Token: "t1"},
		{Email: "b@example.com", Token: "t2"},
		{Email: "c@example.com", Token: "t3"},
	})

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, []string{"b@example.com"}, report.Failed)
	assert.Equal(t, 1, report.Requeued)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "b@example.com", queue.jobs[0].ID)

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, "Set Your Password", msg.Subject)
		assert.Equal(t, mailer.TemplateSetPassword, msg.Template)
		assert.Contains(t, msg.Data.Link, "set-password?token=")
		assert.Equal(t, "72h0m0s", msg.Data.ExpiresIn)
	}

	snap := metrics.Snapshot()
	assert.EqualValues(t, 2, snap.MailsSent)
	assert.EqualValues(t, 1, snap.MailsFailed)
}

func TestSendPasswordResetQueuesOnFailure(t *testing.T) {
	sender := &mockMailer{failOn: map[string]bool{"a@example.com": true}}
	queue := &mockRetryQueue{}
	svc := NewNotificationService(sender, queue, nil, nil, NotificationConfig{ResetTTL: time.Hour})

	require.NoError(t, svc.SendPasswordReset(context.Background(), Recipient{Email: "a@example.com", Token: "r1"}))
	require.Len(t, queue.jobs, 1)

	queue.err = jobs.ErrQueueFull
	err := svc.SendPasswordReset(context.Background(), Recipient{Email: "a@example.com", Token: "r2"})
	assert.Error(t, err)
}

func TestHandleRetryResendsMessage(t *testing.T) {
	sender := &mockMailer{}
	svc := NewNotificationService(sender, nil, nil, nil, NotificationConfig{})

	msg := mailer.Message{To: "a@example.com", Template: mailer.TemplateResetPassword}
	require.NoError(t, svc.HandleRetry(context.Background(), jobs.Job{ID: "a@example.com", Payload: msg}))
	assert.Len(t, sender.messages(), 1)

	assert.NoError(t, svc.HandleRetry(context.Background(), jobs.Job{ID: "x", Payload: "garbage"}))
}
