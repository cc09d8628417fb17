package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline/internal/events"
)

type capturedMail struct {
	to      string
	subject string
	body    string
}

type memoryMailer struct {
	sent []capturedMail
}

func (m *memoryMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, capturedMail{to: to, subject: subject, body: body})
	return nil
}

func taskFor(t *testing.T, evt events.Event) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return asynq.NewTask(evt.Kind(), payload)
}

func TestNotifierLowStock(t *testing.T) {
	mailer := &memoryMailer{}
	n := NewNotifier(NotifierConfig{Mailer: mailer, To: "ops@example.com", Locale: "en", Currency: "USD"})

	err := n.handleLowStock(context.Background(), taskFor(t, events.LowStockAlert{
		ProductID: 1, ProductCode: "SKU-1", Quantity: 4, Threshold: 5,
	}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "ops@example.com", mailer.sent[0].to)
	require.Contains(t, mailer.sent[0].subject, "SKU-1")
	require.Contains(t, mailer.sent[0].body, "threshold 5")
}

func TestNotifierCreditLimitExceeded(t *testing.T) {
	mailer := &memoryMailer{}
	n := NewNotifier(NotifierConfig{Mailer: mailer, To: "ops@example.com", Locale: "en", Currency: "USD"})

	err := n.handleCreditLimitExceeded(context.Background(), taskFor(t, events.CreditLimitExceeded{
		CustomerID: 7, CreditLimit: 1000, Spend: 1500, Overage: 500,
	}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Contains(t, mailer.sent[0].subject, "customer 7")
}

func TestNotifierBadPayloadSkipsRetry(t *testing.T) {
	n := NewNotifier(NotifierConfig{To: "ops@example.com"})

	err := n.handleSaleCompleted(context.Background(), asynq.NewTask(events.KindSaleCompleted, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
