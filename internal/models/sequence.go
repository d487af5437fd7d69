package models

// Sequence is the last number handed out for a (name, year) counter.
type Sequence struct {
	Name      string `gorm:"primaryKey;size:20"`
	Year      int    `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64  `gorm:"not null"`
}
