package channeldb

import (
	"bytes"
	"encoding/binary"
	"io"
	"fmt"
	"sync"

	"github.com/boltdb/bolt"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lndcore/lnwallet"
)

// ChannelRegistry is the component H channel registry: the authoritative
// set of open channels, held in memory for the htlcswitch's channel actors
// to mutate directly and mirrored to the channeldb bucket after every
// mutation so a restart can recover state.
type ChannelRegistry struct {
	db *DB

	mu       sync.RWMutex
	channels map[lnwallet.ChannelID]*lnwallet.Channel
}

// NewChannelRegistry loads every channel persisted in the open-channels
// bucket into memory.
func NewChannelRegistry(db *DB) (*ChannelRegistry, error) {
	r := &ChannelRegistry{
		db:       db,
		channels: make(map[lnwallet.ChannelID]*lnwallet.Channel),
	}

	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(openChannelBucket)
		if bucket == nil {
			return ErrNoChanDBExists
		}

		return bucket.ForEach(func(k, v []byte) error {
			ch, err := deserializeChannel(v)
			if err != nil {
				return fmt.Errorf("channeldb: corrupt channel %x: %w", k, err)
			}
			r.channels[ch.ID] = ch
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infof("channeldb: loaded %d channel(s) from disk", len(r.channels))

	return r, nil
}

// Register adds a newly-funded channel to the registry and persists its
// initial snapshot.
func (r *ChannelRegistry) Register(ch *lnwallet.Channel) error {
	r.mu.Lock()
	if _, ok := r.channels[ch.ID]; ok {
		r.mu.Unlock()
		return ErrChannelExists
	}
	r.channels[ch.ID] = ch
	r.mu.Unlock()

	return r.Persist(ch)
}

// Lookup returns the live Channel pointer for id, or ErrChannelNoExist.
func (r *ChannelRegistry) Lookup(id lnwallet.ChannelID) (*lnwallet.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[id]
	if !ok {
		return nil, ErrChannelNoExist
	}
	return ch, nil
}

// List returns every channel currently known to the registry.
func (r *ChannelRegistry) List() []*lnwallet.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*lnwallet.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// Remove deletes a channel from the registry and its persisted snapshot,
// following a cooperative or unilateral close reaching final confirmation.
func (r *ChannelRegistry) Remove(id lnwallet.ChannelID) error {
	r.mu.Lock()
	if _, ok := r.channels[id]; !ok {
		r.mu.Unlock()
		return ErrChannelNoExist
	}
	delete(r.channels, id)
	r.mu.Unlock()

	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(openChannelBucket).Delete(id[:])
	})
}

// Persist writes ch's current snapshot to the open-channels bucket. The
// htlcswitch channel actor calls this after every state-mutating method on
// lnwallet.Channel so the on-disk copy never lags a committed state
// transition.
func (r *ChannelRegistry) Persist(ch *lnwallet.Channel) error {
	raw, err := serializeChannel(ch)
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(openChannelBucket).Put(ch.ID[:], raw)
	})
}

// serializeChannel flattens a Channel's exported state into a compact
// binary encoding, in the length-prefixed style the teacher's channeldb
// uses for its graph node/edge records.
func serializeChannel(c *lnwallet.Channel) ([]byte, error) {
	var b bytes.Buffer

	if _, err := b.Write(c.ID[:]); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&b, 0, c.FundingOutpoint.Hash[:]); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, c.FundingOutpoint.Index); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.FundingAmount)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.LocalBalance)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.RemoteBalance)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.LocalFeePerKw)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.RemoteFeePerKw)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.LocalDustLimit)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.RemoteDustLimit)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, c.LocalCSVDelay); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, c.RemoteCSVDelay); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.LocalCommitIndex)); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint64(c.RemoteCommitIndex)); err != nil {
		return nil, err
	}
	if err := writeBasePoints(&b, c.LocalBasePoints); err != nil {
		return nil, err
	}
	if err := writeBasePoints(&b, c.RemoteBasePoints); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, byteOrder, uint8(c.State())); err != nil {
		return nil, err
	}

	htlcs := c.SnapshotHTLCs()
	if err := binary.Write(&b, byteOrder, uint32(len(htlcs))); err != nil {
		return nil, err
	}
	for idx, htlc := range htlcs {
		if err := binary.Write(&b, byteOrder, idx); err != nil {
			return nil, err
		}
		if err := binary.Write(&b, byteOrder, uint8(htlc.Direction)); err != nil {
			return nil, err
		}
		if err := binary.Write(&b, byteOrder, htlc.CltvExpiry); err != nil {
			return nil, err
		}
		if err := binary.Write(&b, byteOrder, uint64(htlc.Amount)); err != nil {
			return nil, err
		}
		if _, err := b.Write(htlc.PaymentHash[:]); err != nil {
			return nil, err
		}
	}

	return b.Bytes(), nil
}

func deserializeChannel(raw []byte) (*lnwallet.Channel, error) {
	r := bytes.NewReader(raw)

	var id lnwallet.ChannelID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return nil, err
	}

	txidBytes, err := wire.ReadVarBytes(r, 0, 32, "funding txid")
	if err != nil {
		return nil, err
	}
	var outpoint wire.OutPoint
	copy(outpoint.Hash[:], txidBytes)
	if err := binary.Read(r, byteOrder, &outpoint.Index); err != nil {
		return nil, err
	}

	var fundingAmt, localBal, remoteBal uint64
	var localFee, remoteFee, localDust, remoteDust uint64
	if err := binary.Read(r, byteOrder, &fundingAmt); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &localBal); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &remoteBal); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &localFee); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &remoteFee); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &localDust); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &remoteDust); err != nil {
		return nil, err
	}

	var localCSV, remoteCSV uint32
	if err := binary.Read(r, byteOrder, &localCSV); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &remoteCSV); err != nil {
		return nil, err
	}

	var localCommit, remoteCommit uint64
	if err := binary.Read(r, byteOrder, &localCommit); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &remoteCommit); err != nil {
		return nil, err
	}

	localPoints, err := readBasePoints(r)
	if err != nil {
		return nil, err
	}
	remotePoints, err := readBasePoints(r)
	if err != nil {
		return nil, err
	}

	var state uint8
	if err := binary.Read(r, byteOrder, &state); err != nil {
		return nil, err
	}

	ch := lnwallet.NewChannel(
		id, outpoint, btcutil.Amount(fundingAmt),
		lnwallet.MilliSatoshi(localBal), lnwallet.MilliSatoshi(remoteBal),
	)
	ch.LocalFeePerKw = btcutil.Amount(localFee)
	ch.RemoteFeePerKw = btcutil.Amount(remoteFee)
	ch.LocalDustLimit = btcutil.Amount(localDust)
	ch.RemoteDustLimit = btcutil.Amount(remoteDust)
	ch.LocalCSVDelay = localCSV
	ch.RemoteCSVDelay = remoteCSV
	ch.LocalCommitIndex = lnwallet.CommitmentNumber(localCommit)
	ch.RemoteCommitIndex = lnwallet.CommitmentNumber(remoteCommit)
	ch.LocalBasePoints = localPoints
	ch.RemoteBasePoints = remotePoints
	if state == uint8(lnwallet.ChannelOpen) {
		ch.MarkOpen()
	}

	var numHTLCs uint32
	if err := binary.Read(r, byteOrder, &numHTLCs); err != nil {
		return nil, err
	}
	for i := uint32(0); i < numHTLCs; i++ {
		var idx uint64
		if err := binary.Read(r, byteOrder, &idx); err != nil {
			return nil, err
		}
		var direction uint8
		if err := binary.Read(r, byteOrder, &direction); err != nil {
			return nil, err
		}
		var cltv uint32
		if err := binary.Read(r, byteOrder, &cltv); err != nil {
			return nil, err
		}
		var amt uint64
		if err := binary.Read(r, byteOrder, &amt); err != nil {
			return nil, err
		}
		var hash lnwallet.PaymentHash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, err
		}

		// The persisted balances already exclude pending HTLC amounts,
		// so the HTLC is restored directly rather than through AddHTLC,
		// which would debit the balance a second time.
		ch.Htlcs[idx] = &lnwallet.HTLCInfo{
			Direction:   lnwallet.HTLCDirection(direction),
			CltvExpiry:  cltv,
			Amount:      lnwallet.MilliSatoshi(amt),
			PaymentHash: hash,
		}
	}

	return ch, nil
}

func writeBasePoints(b *bytes.Buffer, p lnwallet.ChannelBasePoints) error {
	keys := []*btcec.PublicKey{p.Payment, p.DelayedPayment, p.HTLC, p.Revocation}
	for _, k := range keys {
		if k == nil {
			if _, err := b.Write(make([]byte, 33)); err != nil {
				return err
			}
			continue
		}
		if _, err := b.Write(k.SerializeCompressed()); err != nil {
			return err
		}
	}
	return nil
}

func readBasePoints(r *bytes.Reader) (lnwallet.ChannelBasePoints, error) {
	var out lnwallet.ChannelBasePoints
	dests := []**btcec.PublicKey{&out.Payment, &out.DelayedPayment, &out.HTLC, &out.Revocation}

	for _, dest := range dests {
		var raw [33]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return out, err
		}
		if raw == ([33]byte{}) {
			continue
		}
		pub, err := btcec.ParsePubKey(raw[:])
		if err != nil {
			return out, err
		}
		*dest = pub
	}

	return out, nil
}
