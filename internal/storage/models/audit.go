package models

import "time"

// SignalAudit is one validation verdict, accepted or rejected.
type SignalAudit struct {
	BaseModel
	SourceTxHash  string    `gorm:"index;not null;type:varchar(66)"`
	WalletAddress string    `gorm:"index;not null;type:varchar(42)"`
	TokenAddress  string    `gorm:"index;not null;type:varchar(42)"`
	Confidence    float64   `gorm:"type:decimal(5,4)"`
	NotionalETH   float64   `gorm:"type:decimal(24,9)"`
	Accepted      bool      `gorm:"not null"`
	RejectReason  string    `gorm:"type:varchar(40)"`
	DetectedAt    time.Time `gorm:"index"`
}
