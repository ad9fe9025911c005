package domain

import "time"

// DailyCounter tracks one firm's spend and loss for one calendar day, UTC.
// Reset lazily on first access if the date has advanced past Day.
type DailyCounter struct {
	FirmName    string `gorm:"primaryKey"`
	Day         string `gorm:"primaryKey"` // YYYY-MM-DD, UTC
	BetsCount   int
	Spent       float64
	RealizedLoss float64
}

// UTCDay returns the calendar-day key for t in UTC, matching how
// DailyCounter.Day is stored and compared.
func UTCDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
