package amqp

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxBackoff, maxBackoff}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, d)
		}
	}
	if got := exponentialBackoff(40); got != maxBackoff {
		t.Errorf("large attempt should stay capped, got %v", got)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := map[string]bool{
		"dial tcp: connection refused":     true,
		"connection closed by broker":      true,
		"read: unexpected EOF":             true,
		"write: broken pipe":               true,
		"use of closed network connection": true,
		"expense e1 not found":             false,
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			if got := isConnectionError(errors.New(msg)); got != want {
				t.Errorf("isConnectionError(%q) = %v, want %v", msg, got, want)
			}
		})
	}
	if isConnectionError(nil) {
		t.Error("nil is not a connection error")
	}
}

func openCircuit(c *Client) {
	atomic.StoreInt32(&c.state, StateOpen)
	c.lastFailure = time.Now()
}

func TestClient_CircuitBreaker(t *testing.T) {
	c := &Client{exchangeName: "budgeteer", queueName: "sync_expenses"}

	if c.isCircuitOpen() {
		t.Fatal("new client should start closed")
	}

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("circuit opened after %d failures", maxFailures-1)
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatalf("circuit should open at %d failures", maxFailures)
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset the count")
	}

	atomic.StoreInt32(&c.state, StateOpen)
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if c.isCircuitOpen() || atomic.LoadInt32(&c.state) != StateHalfOpen {
		t.Fatal("an expired open circuit should move to half-open")
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("a failure while half-open should reopen the circuit")
	}
}

func TestClient_PublishRejectedWhenOpen(t *testing.T) {
	c := &Client{exchangeName: "budgeteer", queueName: "sync_expenses"}
	openCircuit(c)
	ctx := context.Background()

	alert := NewBudgetAlertMessage("b1", "Food", AlertWarning, decimal.NewFromInt(100), decimal.NewFromInt(15), 85)
	publishes := map[string]func() error{
		"sync":   func() error { return c.PublishExpenseSync(ctx, "e1", 1) },
		"delete": func() error { return c.PublishExpenseDelete(ctx, "e1") },
		"alert":  func() error { return c.PublishBudgetAlert(ctx, alert) },
	}
	for name, publish := range publishes {
		err := publish()
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Errorf("%s: expected circuit breaker error, got %v", name, err)
		}
	}
}

func TestClient_PublishCanceledContext(t *testing.T) {
	c := &Client{exchangeName: "budgeteer", queueName: "sync_expenses"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.PublishExpenseSync(ctx, "e1", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewExpenseSyncMessage(t *testing.T) {
	msg := NewExpenseSyncMessage("exp-1", 42)

	if msg.Type != TypeExpenseSync {
		t.Errorf("Type = %q, want %q", msg.Type, TypeExpenseSync)
	}
	if msg.ID != "exp-1" || msg.Version != 42 {
		t.Errorf("unexpected message %+v", msg)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestMessageTypeOf(t *testing.T) {
	alert, _ := NewBudgetAlertMessage("b1", "Food", AlertExceeded, decimal.NewFromInt(100), decimal.NewFromInt(-5), 100).ToJSON()
	del, _ := NewExpenseDeleteMessage("e1").ToJSON()

	tests := []struct {
		name    string
		body    []byte
		want    MessageType
		wantErr bool
	}{
		{name: "budget alert", body: alert, want: TypeBudgetAlert},
		{name: "expense delete", body: del, want: TypeExpenseDelete},
		{name: "missing type", body: []byte(`{"id":"e1"}`), wantErr: true},
		{name: "not json", body: []byte(`nope`), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MessageTypeOf(tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MessageTypeOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MessageTypeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBudgetAlertMessage_JSON(t *testing.T) {
	msg := NewBudgetAlertMessage("b1", "Food", AlertWarning, decimal.RequireFromString("250.00"), decimal.RequireFromString("37.5"), 85)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := BudgetAlertMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.BudgetID != "b1" || parsed.Level != AlertWarning || parsed.Progress != 85 ||
		!parsed.Remaining.Equal(decimal.RequireFromString("37.5")) || !parsed.Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("unexpected parsed alert %+v", parsed)
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func TestDispatch(t *testing.T) {
	syncBody, _ := NewExpenseSyncMessage("e1", 7).ToJSON()
	deleteBody, _ := NewExpenseDeleteMessage("e2").ToJSON()

	var gotSync *ExpenseSyncMessage
	var gotDelete string
	handlers := Handlers{
		ExpenseSync: func(_ context.Context, m *ExpenseSyncMessage) error {
			gotSync = m
			return nil
		},
		ExpenseDelete: func(_ context.Context, m *ExpenseDeleteMessage) error {
			gotDelete = m.ID
			return errors.New("sheet unavailable")
		},
	}

	tests := []struct {
		name        string
		body        []byte
		wantAck     bool
		wantRequeue bool
	}{
		{name: "sync handled", body: syncBody, wantAck: true},
		{name: "handler failure requeues", body: deleteBody, wantRequeue: true},
		{name: "malformed dropped", body: []byte(`{`)},
		{name: "unknown type dropped", body: []byte(`{"type":"other"}`)},
		{name: "no handler acks", body: []byte(`{"type":"budget.alert","budgetId":"b1"}`), wantAck: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			dispatch(context.Background(), tt.body, ack, handlers)
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected a nack")
			}
			if ack.requeued != tt.wantRequeue {
				t.Errorf("requeued = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}

	if gotSync == nil || gotSync.ID != "e1" || gotSync.Version != 7 {
		t.Errorf("sync handler got %+v", gotSync)
	}
	if gotDelete != "e2" {
		t.Errorf("delete handler got %q", gotDelete)
	}
}
