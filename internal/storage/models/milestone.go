package models

// CapitalMilestone records the first crossing of a capital multiple.
type CapitalMilestone struct {
	BaseModel
	Multiple   float64 `gorm:"uniqueIndex;not null;type:decimal(10,2)"`
	CapitalUSD float64 `gorm:"type:decimal(20,6)"`
}
