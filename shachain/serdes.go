package shachain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ToBytes serializes the store's non-empty slots: a 1-byte slot count
// followed by, per slot, an 8-byte index and a 32-byte secret — 40 bytes
// per slot, mirroring the compact on-the-wire encoding used for revocation
// storage trees.
func (s *Store) ToBytes() ([]byte, error) {
	var buf bytes.Buffer

	count := uint8(s.NumSlots())
	if err := binary.Write(&buf, binary.BigEndian, count); err != nil {
		return nil, err
	}

	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		if err := binary.Write(&buf, binary.BigEndian, sl.index); err != nil {
			return nil, err
		}
		if _, err := buf.Write(sl.secret[:]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// StoreFromBytes deserializes a Store previously produced by ToBytes.
func StoreFromBytes(b []byte) (*Store, error) {
	if len(b) == 0 {
		return NewStore(), nil
	}

	buf := bytes.NewBuffer(b)

	count, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	if int(count) > numBuckets {
		return nil, fmt.Errorf("shachain: serialized store claims %d "+
			"slots, max %d", count, numBuckets)
	}
	if buf.Len() != int(count)*40 {
		return nil, fmt.Errorf("shachain: malformed store encoding: "+
			"expected %d remaining bytes, got %d", int(count)*40, buf.Len())
	}

	store := NewStore()

	for i := 0; i < int(count); i++ {
		var index uint64
		if err := binary.Read(buf, binary.BigEndian, &index); err != nil {
			return nil, err
		}
		if index > MaxIndex {
			return nil, fmt.Errorf("shachain: slot %d claims index %d, "+
				"max %d", i, index, MaxIndex)
		}

		var secret Secret
		if _, err := buf.Read(secret[:]); err != nil {
			return nil, err
		}

		store.slots[lowestSetBit(index)] = &slot{index: index, secret: secret}
	}

	return store, nil
}
