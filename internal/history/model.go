package history

import "time"

// DeliveryRecord captures the outcome of one speech delivery for
// observability and usage accounting.
type DeliveryRecord struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"index"`
	Provider  string
	Delivery  string
	TextChars int

	FallbackFromError string
	ErrorKind         string
	ErrorMessage      string

	DurationMs int64
	CreatedAt  time.Time
}

func (DeliveryRecord) TableName() string {
	return "delivery_records"
}
