package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shelfwise/lending/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	OTPIssued = "auth.otp.issued"

	ItemUploaded = "item.uploaded"
	ItemDeleted  = "item.deleted"

	LoanBorrowed = "loan.borrowed"
	LoanReturned = "loan.returned"

	// StorageSync requests a retry of a protected-copy transition that
	// failed after the loan ledger was already committed.
	StorageSync = "storage.sync"
)

// Event payloads
type OTPIssuedEvent struct {
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

type ItemUploadedEvent struct {
	ItemID          int64     `json:"item_id"`
	EditionID       int64     `json:"edition_id"`
	LendingRequired bool      `json:"lending_required"`
	CreatedAt       time.Time `json:"created_at"`
}

type ItemDeletedEvent struct {
	EditionID int64     `json:"edition_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type LoanEvent struct {
	LoanID     int64      `json:"loan_id"`
	ItemID     int64      `json:"item_id"`
	EditionID  int64      `json:"edition_id"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

type StorageSyncEvent struct {
	EditionID int64  `json:"edition_id"`
	Action    string `json:"action"` // "ensure" or "release"
}
