package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/minefund-backend/internal/testutil"
	"github.com/simaogato/minefund-backend/internal/usecase/allocator"
	"github.com/simaogato/minefund-backend/internal/usecase/transfer"
)

func startNATS(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Port:      -1, // Random port
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSNotifier_PublishesEvent(t *testing.T) {
	ns := startNATS(t)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("test.transfers", received)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	notifier, err := Connect(ns.ClientURL(), "test.transfers", testutil.NewLogger())
	require.NoError(t, err)
	defer notifier.Close()

	event := transfer.TransferCompleted{
		TransactionID:   uuid.New(),
		InvestmentID:    uuid.New(),
		WalletAccountID: uuid.New(),
		Currency:        "USDT",
		Amount:          decimal.RequireFromString("100.5"),
		Transfers: []allocator.AccountTransfer{
			{AccountID: uuid.New(), Amount: decimal.RequireFromString("100.5")},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, notifier.TransferCompleted(ctx, event))

	select {
	case msg := <-received:
		assert.Equal(t, event.TransactionID.String(), msg.Header.Get("Nats-Msg-Id"))

		var got transfer.TransferCompleted
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event.TransactionID, got.TransactionID)
		assert.True(t, event.Amount.Equal(got.Amount))
		require.Len(t, got.Transfers, 1)
		assert.Equal(t, event.Transfers[0].AccountID, got.Transfers[0].AccountID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transfer event")
	}
}

func TestNATSNotifier_JetStreamDeduplicates(t *testing.T) {
	ns := startNATS(t)

	notifier, err := Connect(ns.ClientURL(), "test.js.transfers", testutil.NewLogger())
	require.NoError(t, err)
	defer notifier.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, notifier.EnableJetStream(ctx, "TEST_TRANSFERS"))

	event := transfer.TransferCompleted{
		TransactionID: uuid.New(),
		Currency:      "USDT",
		Amount:        decimal.NewFromInt(7),
	}
	require.NoError(t, notifier.TransferCompleted(ctx, event))
	// A retried delivery of the same transaction is dropped by the stream
	require.NoError(t, notifier.TransferCompleted(ctx, event))

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "TEST_TRANSFERS")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	raw, err := stream.GetLastMsgForSubject(ctx, "test.js.transfers")
	require.NoError(t, err)
	var got transfer.TransferCompleted
	require.NoError(t, json.Unmarshal(raw.Data, &got))
	assert.Equal(t, event.TransactionID, got.TransactionID)
}

func TestNewNATSNotifier_DefaultSubject(t *testing.T) {
	n := NewNATSNotifier(nil, "")
	assert.Equal(t, DefaultSubject, n.subject)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := LogNotifier{Log: testutil.NewLogger()}
	assert.NoError(t, n.TransferCompleted(context.Background(), transfer.TransferCompleted{Amount: decimal.NewFromInt(1)}))
}
