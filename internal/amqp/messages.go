package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseEvent notifies downstream workers that a user's expenses changed
// within a given month. The worker re-reads the database, so the message
// only carries the coordinates of the change.
type ExpenseEvent struct {
	UserID    int64     `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event for a change to a user's month.
func NewExpenseEvent(userID int64, year, month int, action string) *ExpenseEvent {
	return &ExpenseEvent{
		UserID:    userID,
		Year:      year,
		Month:     month,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON creates an event from JSON bytes.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
