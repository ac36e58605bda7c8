package runtime

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"rewardcenter/storage"
)

var headKey = []byte("rewardcenter/head")

// Head is the last committed ledger position.
type Head struct {
	Root common.Hash
	Seq  uint64
}

// LoadHead returns the persisted head, or false on a fresh database.
func LoadHead(db storage.Database) (Head, bool, error) {
	ok, err := db.Has(headKey)
	if err != nil || !ok {
		return Head{}, false, err
	}
	raw, err := db.Get(headKey)
	if err != nil {
		return Head{}, false, err
	}
	var head Head
	if err := rlp.DecodeBytes(raw, &head); err != nil {
		return Head{}, false, errors.Join(errors.New("runtime: corrupt head record"), err)
	}
	return head, true, nil
}

func writeHead(db storage.Database, head Head) error {
	raw, err := rlp.EncodeToBytes(head)
	if err != nil {
		return err
	}
	return db.Put(headKey, raw)
}
