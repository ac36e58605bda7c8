package indexer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type payoutRow struct {
	Seq          int64  `parquet:"name=seq, type=INT64"`
	RewardCenter string `parquet:"name=reward_center, type=BYTE_ARRAY, convertedtype=UTF8"`
	Buyer        string `parquet:"name=buyer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seller       string `parquet:"name=seller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Outcome      string `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price        int64  `parquet:"name=price, type=INT64, convertedtype=UINT_64"`
	BuyerReward  int64  `parquet:"name=buyer_reward, type=INT64, convertedtype=UINT_64"`
	SellerReward int64  `parquet:"name=seller_reward, type=INT64, convertedtype=UINT_64"`
	IndexedAt    string `parquet:"name=indexed_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportPayouts writes the indexed reward payouts as a Snappy-compressed
// Parquet file in sequence order. An empty rewardCenter exports every center.
// It returns the number of rows written.
func (ix *Indexer) ExportPayouts(ctx context.Context, w io.Writer, rewardCenter string) (int, error) {
	tx := ix.db.WithContext(ctx).Model(&RewardPayout{}).Order("seq ASC")
	if rewardCenter != "" {
		tx = tx.Where("reward_center = ?", rewardCenter)
	}
	var payouts []RewardPayout
	if err := tx.Find(&payouts).Error; err != nil {
		return 0, fmt.Errorf("indexer: load payouts: %w", err)
	}

	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(payoutRow), 1)
	if err != nil {
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, p := range payouts {
		row := &payoutRow{
			Seq:          int64(p.Seq),
			RewardCenter: p.RewardCenter,
			Buyer:        p.Buyer,
			Seller:       p.Seller,
			Outcome:      p.Outcome,
			Price:        int64(p.Price),
			BuyerReward:  int64(p.BuyerReward),
			SellerReward: int64(p.SellerReward),
			IndexedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return 0, fmt.Errorf("indexer: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	return len(payouts), nil
}
