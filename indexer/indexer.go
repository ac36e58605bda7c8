package indexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"rewardcenter/core/events"
	"rewardcenter/native/rewardcenter"
	"rewardcenter/observability"
)

var ErrUnsupportedDriver = errors.New("indexer: unsupported driver")

// Open connects to the index database and migrates it.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer writes committed transactions into SQL tables for querying.
// Indexing a transaction twice is a no-op.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps a migrated database.
func New(db *gorm.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Indexer{db: db, logger: logger}
}

func fingerprint(parts ...string) string {
	sum := blake3.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Index stores msg. It reports whether the transaction was new.
func (ix *Indexer) Index(ctx context.Context, msg events.Committed) (bool, error) {
	txHash := hex.EncodeToString(msg.TxHash[:])
	inserted := false
	err := ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := TransactionRecord{ID: uuid.New(), TxHash: txHash, Seq: msg.Seq, EventCount: len(msg.Events)}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		for i, evt := range msg.Events {
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return err
			}
			fp := fingerprint(txHash, strconv.Itoa(i))
			row := EventRecord{
				ID:           uuid.New(),
				Fingerprint:  fp,
				TxHash:       txHash,
				Seq:          msg.Seq,
				Position:     i,
				Type:         evt.Type,
				RewardCenter: evt.Attributes["rewardCenter"],
				Listing:      evt.Attributes["listing"],
				Offer:        evt.Attributes["offer"],
				Attributes:   string(attrs),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if payout, ok := payoutFrom(evt.Type, evt.Attributes); ok {
				payout.ID = uuid.New()
				payout.Fingerprint = fp
				payout.Seq = msg.Seq
				if err := tx.Create(&payout).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("indexer: index seq %d: %w", msg.Seq, err)
	}
	if inserted {
		for _, evt := range msg.Events {
			observability.Events().RecordIndexed(evt.Type)
		}
	}
	return inserted, nil
}

func payoutFrom(eventType string, attrs map[string]string) (RewardPayout, bool) {
	var outcome string
	switch eventType {
	case rewardcenter.EventTypeRewardPaid:
		outcome = "paid"
	case rewardcenter.EventTypeRewardReduced:
		outcome = "reduced"
	case rewardcenter.EventTypeRewardSkipped:
		outcome = "skipped"
	default:
		return RewardPayout{}, false
	}
	num := func(key string) uint64 {
		v, _ := strconv.ParseUint(attrs[key], 10, 64)
		return v
	}
	return RewardPayout{
		RewardCenter: attrs["rewardCenter"],
		Buyer:        attrs["buyer"],
		Seller:       attrs["seller"],
		Outcome:      outcome,
		Price:        num("price"),
		BuyerReward:  num("buyerReward"),
		SellerReward: num("sellerReward"),
	}, true
}

// Journal replays committed transactions by sequence.
type Journal interface {
	HeadSeq() uint64
	Committed(seq uint64) (events.Committed, bool, error)
}

const catchUpInterval = 5 * time.Second

// Run indexes every committed transaction in sequence order until ctx is
// done. Messages the hub drops, and sequences whose write failed, are read
// back from journal before any later sequence is indexed.
func (ix *Indexer) Run(ctx context.Context, hub *events.Hub, journal Journal) {
	sub, cancel := hub.Subscribe(256)
	defer cancel()

	last, err := ix.LastSeq(ctx)
	if err != nil {
		ix.logger.Error("resume indexer", "error", err)
		return
	}
	next := last + 1
	catchUp := func(upTo uint64) {
		for next <= upTo && ctx.Err() == nil {
			msg, ok, err := journal.Committed(next)
			if err != nil {
				ix.logger.Error("read journal", "seq", next, "error", err)
				return
			}
			if !ok {
				ix.logger.Warn("journal entry missing, skipping", "seq", next)
				next++
				continue
			}
			if _, err := ix.Index(ctx, msg); err != nil {
				ix.logger.Error("index committed transaction", "seq", next, "error", err)
				return
			}
			next++
		}
	}
	catchUp(journal.HeadSeq())

	ticker := time.NewTicker(catchUpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			catchUp(journal.HeadSeq())
		case msg, ok := <-sub:
			if !ok {
				return
			}
			if msg.Seq < next {
				continue
			}
			catchUp(msg.Seq - 1)
			if msg.Seq != next {
				continue
			}
			if _, err := ix.Index(ctx, msg); err != nil {
				ix.logger.Error("index committed transaction", "seq", msg.Seq, "error", err)
				continue
			}
			next++
		}
	}
}

// Query narrows event lookups. Zero fields do not filter.
type Query struct {
	Type         string
	RewardCenter string
	Listing      string
	Offer        string
	Limit        int
}

// Events returns matching events, newest first.
func (ix *Indexer) Events(ctx context.Context, q Query) ([]EventRecord, error) {
	tx := ix.db.WithContext(ctx).Model(&EventRecord{})
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.RewardCenter != "" {
		tx = tx.Where("reward_center = ?", q.RewardCenter)
	}
	if q.Listing != "" {
		tx = tx.Where("listing = ?", q.Listing)
	}
	if q.Offer != "" {
		tx = tx.Where("offer = ?", q.Offer)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []EventRecord
	err := tx.Order("seq DESC").Order("position DESC").Limit(limit).Find(&out).Error
	return out, err
}

// RewardTotals sums the rewards paid by a reward center.
type RewardTotals struct {
	Payouts      int64  `json:"payouts"`
	Skipped      int64  `json:"skipped"`
	BuyerReward  uint64 `json:"buyerReward"`
	SellerReward uint64 `json:"sellerReward"`
}

// Totals aggregates the payouts of rewardCenter.
func (ix *Indexer) Totals(ctx context.Context, rewardCenter string) (RewardTotals, error) {
	var rows []RewardPayout
	if err := ix.db.WithContext(ctx).Where("reward_center = ?", rewardCenter).Find(&rows).Error; err != nil {
		return RewardTotals{}, err
	}
	var out RewardTotals
	for _, row := range rows {
		if row.Outcome == "skipped" {
			out.Skipped++
			continue
		}
		out.Payouts++
		out.BuyerReward += row.BuyerReward
		out.SellerReward += row.SellerReward
	}
	return out, nil
}

// LastSeq returns the highest indexed sequence, zero when empty.
func (ix *Indexer) LastSeq(ctx context.Context) (uint64, error) {
	var record TransactionRecord
	err := ix.db.WithContext(ctx).Order("seq DESC").Limit(1).Find(&record).Error
	return record.Seq, err
}
