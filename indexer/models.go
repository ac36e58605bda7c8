package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionRecord is one committed transaction.
type TransactionRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash     string    `gorm:"size:64;uniqueIndex"`
	Seq        uint64    `gorm:"index"`
	EventCount int
	CreatedAt  time.Time
}

// EventRecord is one event of a committed transaction. Fingerprint is the
// blake3 digest of the transaction hash and the event position.
type EventRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Fingerprint  string    `gorm:"size:64;uniqueIndex"`
	TxHash       string    `gorm:"size:64;index"`
	Seq          uint64    `gorm:"index"`
	Position     int
	Type         string `gorm:"size:64;index"`
	RewardCenter string `gorm:"size:96;index"`
	Listing      string `gorm:"size:96;index"`
	Offer        string `gorm:"size:96;index"`
	Attributes   string `gorm:"type:text"`
	CreatedAt    time.Time
}

// RewardPayout is the outcome of a settlement's reward payout.
type RewardPayout struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Fingerprint  string    `gorm:"size:64;uniqueIndex"`
	Seq          uint64    `gorm:"index"`
	RewardCenter string    `gorm:"size:96;index"`
	Buyer        string    `gorm:"size:96;index"`
	Seller       string    `gorm:"size:96;index"`
	Outcome      string    `gorm:"size:16"`
	Price        uint64
	BuyerReward  uint64
	SellerReward uint64
	CreatedAt    time.Time
}

// AutoMigrate creates or updates the index tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&TransactionRecord{},
		&EventRecord{},
		&RewardPayout{},
	)
}
