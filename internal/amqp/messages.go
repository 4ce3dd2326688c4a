package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MessageType discriminates the payloads sharing one queue.
type MessageType string

const (
	TypeExpenseSync   MessageType = "expense.sync"
	TypeExpenseDelete MessageType = "expense.delete"
	TypeBudgetAlert   MessageType = "budget.alert"
)

// AlertLevel is how far a budget has been consumed.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

// ExpenseSyncMessage asks the worker to export an expense. It carries only
// the ID and revision; the worker reads the current row from storage.
type ExpenseSyncMessage struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Version   int64       `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewExpenseSyncMessage(id string, version int64) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		Type:      TypeExpenseSync,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ExpenseDeleteMessage asks the worker to remove an exported expense.
type ExpenseDeleteMessage struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewExpenseDeleteMessage(id string) *ExpenseDeleteMessage {
	return &ExpenseDeleteMessage{
		Type:      TypeExpenseDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// BudgetAlertMessage reports a budget crossing its alert threshold.
type BudgetAlertMessage struct {
	Type      MessageType     `json:"type"`
	BudgetID  string          `json:"budgetId"`
	Name      string          `json:"name"`
	Level     AlertLevel      `json:"level"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
	Progress  float64         `json:"progress"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewBudgetAlertMessage(budgetID, name string, level AlertLevel, amount, remaining decimal.Decimal, progress float64) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		Type:      TypeBudgetAlert,
		BudgetID:  budgetID,
		Name:      name,
		Level:     level,
		Amount:    amount,
		Remaining: remaining,
		Progress:  progress,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *ExpenseDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func ExpenseDeleteMessageFromJSON(data []byte) (*ExpenseDeleteMessage, error) {
	var msg ExpenseDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MessageTypeOf reads only the discriminator of a raw body.
func MessageTypeOf(data []byte) (MessageType, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	if head.Type == "" {
		return "", fmt.Errorf("message has no type")
	}
	return head.Type, nil
}
