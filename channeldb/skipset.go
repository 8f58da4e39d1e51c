package channeldb

import (
	"github.com/boltdb/bolt"
)

// skipKind distinguishes a permanent routing skip (persisted, e.g. a channel
// that's permanently gone) from a temporary one (cleared at the start of
// every fresh routepay, per §4.G step 1).
type skipKind uint8

const (
	skipPermanent skipKind = iota
	skipTemporary
)

// SkipSet backs the payment/route driver's permanent and temporary edge
// skip sets (§4.G). Both live in the same bolt bucket, distinguished by a
// one-byte kind suffix on the key, so ClearTemporary can range-delete
// without touching permanent entries.
type SkipSet struct {
	db *DB
}

// NewSkipSet wraps db's route-skip bucket.
func NewSkipSet(db *DB) *SkipSet {
	return &SkipSet{db: db}
}

func skipKey(shortChanID uint64, kind skipKind) []byte {
	key := make([]byte, 9)
	byteOrder.PutUint64(key, shortChanID)
	key[8] = byte(kind)
	return key
}

// AddTemporary marks shortChanID as unusable for the remainder of the
// current routepay/routepay_cont retry loop (§4.G step 7).
func (s *SkipSet) AddTemporary(shortChanID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(skipSetBucket).Put(skipKey(shortChanID, skipTemporary), []byte{1})
	})
}

// AddPermanent marks shortChanID as unusable across all future payment
// attempts, mirroring ucoind's removechannel RPC.
func (s *SkipSet) AddPermanent(shortChanID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(skipSetBucket).Put(skipKey(shortChanID, skipPermanent), []byte{1})
	})
}

// IsSkipped reports whether shortChanID is excluded by either skip set, the
// check the routing oracle must honor per §4.G step 4.
func (s *SkipSet) IsSkipped(shortChanID uint64) (bool, error) {
	var skipped bool

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(skipSetBucket)
		if bucket.Get(skipKey(shortChanID, skipTemporary)) != nil {
			skipped = true
			return nil
		}
		if bucket.Get(skipKey(shortChanID, skipPermanent)) != nil {
			skipped = true
		}
		return nil
	})

	return skipped, err
}

// ClearTemporary empties the temporary skip set, called at the start of a
// fresh routepay (never routepay_cont) per §4.G step 1.
func (s *SkipSet) ClearTemporary() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(skipSetBucket)

		var stale [][]byte
		err := bucket.ForEach(func(k, _ []byte) error {
			if len(k) == 9 && k[8] == byte(skipTemporary) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemovePermanent lifts a permanent skip, e.g. if an operator re-adds a
// channel previously removed via removechannel.
func (s *SkipSet) RemovePermanent(shortChanID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(skipSetBucket).Delete(skipKey(shortChanID, skipPermanent))
	})
}
