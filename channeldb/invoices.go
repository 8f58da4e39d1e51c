package channeldb

import (
	"github.com/boltdb/bolt"

	"github.com/lightningnetwork/lndcore/lnwallet"
)

// PreimageStore persists the preimages of invoices this node has created
// (component H), keyed by their payment hash. The RPC invoice/PAY/routepay
// handlers consult it to settle an incoming HTLC and to hand a decoded
// preimage back to lncli on successful payment.
type PreimageStore struct {
	db *DB
}

// NewPreimageStore wraps db's preimage bucket.
func NewPreimageStore(db *DB) *PreimageStore {
	return &PreimageStore{db: db}
}

// AddInvoice records preimage under its own payment hash, failing with
// ErrDuplicateInvoice if the hash is already known.
func (s *PreimageStore) AddInvoice(preimage [32]byte) (lnwallet.PaymentHash, error) {
	hash := lnwallet.Sha256Hash(preimage)

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(preimageBucket)
		if bucket.Get(hash[:]) != nil {
			return ErrDuplicateInvoice
		}
		return bucket.Put(hash[:], preimage[:])
	})
	if err != nil {
		return lnwallet.PaymentHash{}, err
	}

	return hash, nil
}

// LookupPreimage returns the preimage registered for hash, or
// ErrInvoiceNotFound if none was ever added.
func (s *PreimageStore) LookupPreimage(hash lnwallet.PaymentHash) ([32]byte, error) {
	var preimage [32]byte

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(preimageBucket).Get(hash[:])
		if raw == nil {
			return ErrInvoiceNotFound
		}
		copy(preimage[:], raw)
		return nil
	})
	if err != nil {
		return [32]byte{}, err
	}

	return preimage, nil
}

// EraseInvoice removes a previously-added invoice's preimage, mirroring
// ucoind's eraseinvoice RPC.
func (s *PreimageStore) EraseInvoice(hash lnwallet.PaymentHash) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(preimageBucket)
		if bucket.Get(hash[:]) == nil {
			return ErrInvoiceNotFound
		}
		return bucket.Delete(hash[:])
	})
}

// ListInvoices returns every outstanding payment hash this node can still
// settle, mirroring ucoind's listinvoice RPC.
func (s *PreimageStore) ListInvoices() ([]lnwallet.PaymentHash, error) {
	var hashes []lnwallet.PaymentHash

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(preimageBucket).ForEach(func(k, _ []byte) error {
			var hash lnwallet.PaymentHash
			copy(hash[:], k)
			hashes = append(hashes, hash)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return hashes, nil
}
