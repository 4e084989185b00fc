// Package notify publishes committed profit transfers to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/simaogato/minefund-backend/internal/usecase/transfer"
)

// DefaultSubject is used when no subject is configured
const DefaultSubject = "minefund.transfers.completed"

// dedupWindow is how long JetStream remembers a Nats-Msg-Id
const dedupWindow = 10 * time.Minute

// NATSNotifier publishes TransferCompleted events as JSON on a NATS subject
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	js      jetstream.JetStream // nil publishes core NATS
}

// Connect dials url and returns a notifier publishing on subject
func Connect(url, subject string, log *slog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("minefund-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSNotifier(conn, subject), nil
}

// NewNATSNotifier wraps an existing connection
func NewNATSNotifier(conn *nats.Conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

// EnableJetStream creates or updates stream over the notifier subject
// Later events are published with acknowledgement and deduplicated by transaction ID
func (n *NATSNotifier) EnableJetStream(ctx context.Context, stream string) error {
	js, err := jetstream.New(n.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       stream,
		Subjects:   []string{n.subject},
		Storage:    jetstream.FileStorage,
		Duplicates: dedupWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", stream, err)
	}

	n.js = js
	return nil
}

// TransferCompleted implements transfer.Notifier
func (n *NATSNotifier) TransferCompleted(ctx context.Context, event transfer.TransferCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer event: %w", err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Data = payload
	msg.Header.Set(jetstream.MsgIDHeader, event.TransactionID.String())

	if n.js != nil {
		if _, err := n.js.PublishMsg(ctx, msg); err != nil {
			return fmt.Errorf("failed to publish transfer event: %w", err)
		}
		return nil
	}

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish transfer event: %w", err)
	}

	// Flush only when the caller bounded the wait
	if _, ok := ctx.Deadline(); ok {
		if err := n.conn.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("failed to flush transfer event: %w", err)
		}
	}
	return nil
}

// Close drains the connection
func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}

// LogNotifier writes TransferCompleted events to the log when no broker is configured
type LogNotifier struct {
	Log *slog.Logger
}

// TransferCompleted implements transfer.Notifier
func (n LogNotifier) TransferCompleted(_ context.Context, event transfer.TransferCompleted) error {
	n.Log.Info("transfer completed",
		"transaction_id", event.TransactionID,
		"investment_id", event.InvestmentID,
		"wallet_account_id", event.WalletAccountID,
		"amount", event.Amount.String(),
		"currency", event.Currency,
	)
	return nil
}
