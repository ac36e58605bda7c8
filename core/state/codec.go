package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardcenter/crypto"
)

// RecordVersion is the schema version written in front of every record body.
const RecordVersion byte = 1

const discriminatorLength = 8

var (
	ErrDiscriminatorMismatch = errors.New("state: record discriminator mismatch")
	ErrUnsupportedVersion    = errors.New("state: unsupported record version")
	ErrShortRecord           = errors.New("state: record too short")
)

// Record names; the discriminator of a record is keccak256("account:<name>")[:8].
const (
	RecordMint         = "Mint"
	RecordTokenAccount = "TokenAccount"
	RecordAuctionHouse = "AuctionHouse"
	RecordTradeState   = "TradeState"
	RecordRewardCenter = "RewardCenter"
	RecordListing      = "Listing"
	RecordOffer        = "Offer"
	RecordCursor       = "Cursor"
)

var recordNames = []string{
	RecordMint,
	RecordTokenAccount,
	RecordAuctionHouse,
	RecordTradeState,
	RecordRewardCenter,
	RecordListing,
	RecordOffer,
	RecordCursor,
}

// Discriminator returns the 8-byte tag identifying records of name.
func Discriminator(name string) [discriminatorLength]byte {
	var out [discriminatorLength]byte
	copy(out[:], crypto.Keccak256([]byte("account:"+name)))
	return out
}

// EncodeRecord lays out discriminator || version || rlp(body).
func EncodeRecord(name string, body interface{}) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	disc := Discriminator(name)
	out := make([]byte, 0, discriminatorLength+1+len(encoded))
	out = append(out, disc[:]...)
	out = append(out, RecordVersion)
	return append(out, encoded...), nil
}

// DecodeRecord checks the discriminator and version of data before decoding
// the body into out.
func DecodeRecord(name string, data []byte, out interface{}) error {
	if len(data) < discriminatorLength+1 {
		return ErrShortRecord
	}
	disc := Discriminator(name)
	if string(data[:discriminatorLength]) != string(disc[:]) {
		return fmt.Errorf("%w: want %s", ErrDiscriminatorMismatch, name)
	}
	if version := data[discriminatorLength]; version != RecordVersion {
		return fmt.Errorf("%w: %s v%d", ErrUnsupportedVersion, name, version)
	}
	if err := rlp.DecodeBytes(data[discriminatorLength+1:], out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// RecordName identifies the record type of data by its discriminator.
func RecordName(data []byte) (string, bool) {
	if len(data) < discriminatorLength+1 {
		return "", false
	}
	for _, name := range recordNames {
		disc := Discriminator(name)
		if string(data[:discriminatorLength]) == string(disc[:]) {
			return name, true
		}
	}
	return "", false
}
