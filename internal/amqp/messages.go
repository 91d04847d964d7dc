package amqp

import (
	"encoding/json"
	"time"
)

// ReportSyncMessage asks the worker to push one stored report snapshot to
// the spreadsheet. It carries only the snapshot id plus addressing fields;
// the worker reloads the full report from the database.
type ReportSyncMessage struct {
	ReportID  int64     `json:"report_id"`
	UserID    string    `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportSyncMessage creates a sync message for a stored snapshot
func NewReportSyncMessage(reportID int64, userID string, year, month int) *ReportSyncMessage {
	return &ReportSyncMessage{
		ReportID:  reportID,
		UserID:    userID,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportSyncMessageFromJSON creates a message from JSON bytes
func ReportSyncMessageFromJSON(data []byte) (*ReportSyncMessage, error) {
	var msg ReportSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
