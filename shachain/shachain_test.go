package shachain

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

// deriveFromSeed independently derives s(I) straight from a seed, bypassing
// the Store, so tests can check Lookup against a known-good reference.
func deriveFromSeed(seed Secret, index uint64) Secret {
	buf := seed
	flips := MaxIndex - index

	for bit := 47; bit >= 0; bit-- {
		if flips&(1<<uint(bit)) == 0 {
			continue
		}
		buf = flipBit(buf, bit)
	}

	return buf
}

func testSeed() Secret {
	return Secret(sha256.Sum256([]byte("shachain test seed")))
}

func TestStoreInsertAndLookup(t *testing.T) {
	t.Parallel()

	seed := testSeed()
	store := NewStore()

	indexes := []uint64{MaxIndex, MaxIndex - 1, MaxIndex - 2, MaxIndex - 3}
	for _, idx := range indexes {
		err := store.Insert(idx, deriveFromSeed(seed, idx))
		require.NoError(t, err)
	}

	for _, idx := range indexes {
		got, err := store.Lookup(idx)
		require.NoError(t, err)
		require.Equal(t, deriveFromSeed(seed, idx), got)
	}
}

// TestStoreCompaction verifies the amortized O(1) storage bound: inserting
// a long monotonic run of secrets never grows the store beyond the bucket
// count, since each new insert subsumes its descendants.
func TestStoreCompaction(t *testing.T) {
	t.Parallel()

	seed := testSeed()
	store := NewStore()

	for i := uint64(0); i < 200; i++ {
		idx := MaxIndex - i
		err := store.Insert(idx, deriveFromSeed(seed, idx))
		require.NoError(t, err)
		require.LessOrEqual(t, store.NumSlots(), numBuckets)
	}

	got, err := store.Lookup(MaxIndex - 199)
	require.NoError(t, err)
	require.Equal(t, deriveFromSeed(seed, MaxIndex-199), got)
}

// TestStoreInconsistentSecretRejected verifies that supplying a secret
// which an already-stored ancestor doesn't derive is rejected, modeling
// detection of a counterparty protocol violation.
func TestStoreInconsistentSecretRejected(t *testing.T) {
	t.Parallel()

	seed := testSeed()
	store := NewStore()

	require.NoError(t, store.Insert(MaxIndex, seed))
	require.NoError(t, store.Insert(
		MaxIndex-1, deriveFromSeed(seed, MaxIndex-1),
	))

	var garbage Secret
	garbage[0] = 0xff

	err := store.Insert(MaxIndex-2, garbage)
	require.ErrorIs(t, err, ErrInconsistentSecret)
}

// TestStoreLookupUnknownIndex verifies that a secret which was never
// supplied (nor derivable from anything supplied) can't be reconstructed.
func TestStoreLookupUnknownIndex(t *testing.T) {
	t.Parallel()

	store := NewStore()

	seed := testSeed()
	require.NoError(t, store.Insert(MaxIndex-5, deriveFromSeed(seed, MaxIndex-5)))

	_, err := store.Lookup(MaxIndex - 4)
	require.ErrorIs(t, err, ErrNoAncestor)
}

func TestSerdesRoundTrip(t *testing.T) {
	t.Parallel()

	seed := testSeed()
	store := NewStore()

	for i := uint64(0); i < 10; i++ {
		idx := MaxIndex - i*3
		require.NoError(t, store.Insert(idx, deriveFromSeed(seed, idx)))
	}

	encoded, err := store.ToBytes()
	require.NoError(t, err)

	restored, err := StoreFromBytes(encoded)
	require.NoError(t, err)
	require.Equal(t, store.NumSlots(), restored.NumSlots())

	got, err := restored.Lookup(MaxIndex - 27)
	require.NoError(t, err)
	require.Equal(t, deriveFromSeed(seed, MaxIndex-27), got)
}
