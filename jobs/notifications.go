package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerline-erp/ledgerline/internal/events"
)

// Mailer delivers a rendered notification.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay (Mailpit in development).
type SMTPMailer struct {
	Addr string
	From string
}

// Send implements Mailer.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("jobs: send mail: %w", err)
	}
	return nil
}

// NotifierConfig configures event notification rendering.
type NotifierConfig struct {
	Mailer   Mailer
	To       string
	Locale   string
	Currency string
	Logger   *slog.Logger
}

// Notifier turns ledger events into operator notification emails. Amounts and
// counts are rendered with locale-aware formatting.
type Notifier struct {
	mailer  Mailer
	to      string
	printer *message.Printer
	unit    currency.Unit
	logger  *slog.Logger
}

// NewNotifier constructs Notifier. Unknown locales and currencies fall back
// to English and USD.
func NewNotifier(cfg NotifierConfig) *Notifier {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.English
	}
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		unit = currency.USD
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		mailer:  cfg.Mailer,
		to:      cfg.To,
		printer: message.NewPrinter(tag),
		unit:    unit,
		logger:  logger,
	}
}

// Handlers returns the task handlers for every ledger event kind.
func (n *Notifier) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: events.KindLowStock, Handler: n.handleLowStock},
		{Type: events.KindReorderLevelReached, Handler: n.handleReorder},
		{Type: events.KindCreditLimitExceeded, Handler: n.handleCreditLimitExceeded},
		{Type: events.KindSaleCompleted, Handler: n.handleSaleCompleted},
	}
}

func (n *Notifier) handleLowStock(ctx context.Context, t *asynq.Task) error {
	var evt events.LowStockAlert
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	subject := n.printer.Sprintf("Low stock: %s", evt.ProductCode)
	body := n.printer.Sprintf(
		"Product %s is down to %d units (threshold %d). Consider restocking.",
		evt.ProductCode, evt.Quantity, evt.Threshold)
	return n.send(ctx, subject, body)
}

func (n *Notifier) handleReorder(ctx context.Context, t *asynq.Task) error {
	var evt events.ReorderLevelReached
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	subject := n.printer.Sprintf("Reorder point reached: %s", evt.ProductCode)
	body := n.printer.Sprintf(
		"Product %s reached its reorder point (%d units left, reorder at %d).",
		evt.ProductCode, evt.Quantity, evt.ReorderPoint)
	return n.send(ctx, subject, body)
}

func (n *Notifier) handleCreditLimitExceeded(ctx context.Context, t *asynq.Task) error {
	var evt events.CreditLimitExceeded
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	subject := n.printer.Sprintf("Credit limit exceeded: customer %d", evt.CustomerID)
	body := n.printer.Sprintf(
		"Customer %d has spent %v against a limit of %v (over by %v). The purchase went through; follow up on collection.",
		evt.CustomerID, n.amount(evt.Spend), n.amount(evt.CreditLimit), n.amount(evt.Overage))
	return n.send(ctx, subject, body)
}

func (n *Notifier) handleSaleCompleted(ctx context.Context, t *asynq.Task) error {
	var evt events.SaleCompleted
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	subject := n.printer.Sprintf("Sale completed: %s", evt.Number)
	body := n.printer.Sprintf(
		"Sale %s closed at %v (paid %v, due %v).",
		evt.Number, n.amount(evt.TotalAmount), n.amount(evt.PaidAmount), n.amount(evt.DueAmount))
	return n.send(ctx, subject, body)
}

func (n *Notifier) amount(v float64) currency.Amount {
	return n.unit.Amount(v)
}

func (n *Notifier) send(ctx context.Context, subject, body string) error {
	if n.mailer == nil {
		n.logger.Info("notification", "subject", subject)
		return nil
	}
	if err := n.mailer.Send(ctx, n.to, subject, body); err != nil {
		n.logger.Error("send notification", slog.Any("error", err))
		return err
	}
	return nil
}
