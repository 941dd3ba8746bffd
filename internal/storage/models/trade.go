package models

// Trade is one open or close booked against the ledger.
type Trade struct {
	BaseModel
	TradeID      string  `gorm:"unique;not null;type:varchar(36)"`
	TokenAddress string  `gorm:"index;not null;type:varchar(42)"`
	SourceWallet string  `gorm:"index;type:varchar(42)"`
	Action       string  `gorm:"not null;type:varchar(10)"`
	StakeUSD     float64 `gorm:"type:decimal(20,6)"`
	Quantity     float64 `gorm:"type:decimal(30,9)"`
	Price        float64 `gorm:"type:decimal(24,12)"`
	PnL          float64 `gorm:"type:decimal(20,6)"`
	ExitReason   string  `gorm:"type:varchar(30)"`
	TxHash       string  `gorm:"type:varchar(66)"`
}
