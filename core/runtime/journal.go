package runtime

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardcenter/core/events"
	"rewardcenter/core/types"
	"rewardcenter/storage"
)

var journalPrefix = []byte("rewardcenter/journal/")

type journalEvent struct {
	Type   string
	Keys   []string
	Values []string
}

type journalEntry struct {
	TxHash [32]byte
	Seq    uint64
	Events []journalEvent
}

func journalKey(seq uint64) []byte {
	key := make([]byte, len(journalPrefix)+8)
	copy(key, journalPrefix)
	binary.BigEndian.PutUint64(key[len(journalPrefix):], seq)
	return key
}

func writeJournal(db storage.Database, msg events.Committed) error {
	entry := journalEntry{TxHash: msg.TxHash, Seq: msg.Seq, Events: make([]journalEvent, len(msg.Events))}
	for i, evt := range msg.Events {
		keys := make([]string, 0, len(evt.Attributes))
		for k := range evt.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]string, len(keys))
		for j, k := range keys {
			values[j] = evt.Attributes[k]
		}
		entry.Events[i] = journalEvent{Type: evt.Type, Keys: keys, Values: values}
	}
	raw, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	return db.Put(journalKey(msg.Seq), raw)
}

// ReadJournal returns the committed transaction stored at seq.
func ReadJournal(db storage.Database, seq uint64) (events.Committed, bool, error) {
	key := journalKey(seq)
	ok, err := db.Has(key)
	if err != nil || !ok {
		return events.Committed{}, false, err
	}
	raw, err := db.Get(key)
	if err != nil {
		return events.Committed{}, false, err
	}
	var entry journalEntry
	if err := rlp.DecodeBytes(raw, &entry); err != nil {
		return events.Committed{}, false, errors.Join(errors.New("runtime: corrupt journal record"), err)
	}
	msg := events.Committed{TxHash: entry.TxHash, Seq: entry.Seq, Events: make([]types.Event, len(entry.Events))}
	for i, evt := range entry.Events {
		if len(evt.Keys) != len(evt.Values) {
			return events.Committed{}, false, errors.New("runtime: corrupt journal record")
		}
		attrs := make(map[string]string, len(evt.Keys))
		for j, k := range evt.Keys {
			attrs[k] = evt.Values[j]
		}
		msg.Events[i] = types.Event{Type: evt.Type, Attributes: attrs}
	}
	return msg, true, nil
}

// Committed returns the journaled transaction at seq. Every committed
// sequence is journaled before it is published on the hub.
func (e *Executor) Committed(seq uint64) (events.Committed, bool, error) {
	return ReadJournal(e.db, seq)
}

// HeadSeq returns the last committed sequence.
func (e *Executor) HeadSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}
