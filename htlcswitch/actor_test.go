package htlcswitch

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/lnwallet"
)

func makeTestRegistry(t *testing.T) *channeldb.ChannelRegistry {
	t.Helper()

	tempDir, err := ioutil.TempDir("", "htlcswitchtest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := channeldb.Open(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry, err := channeldb.NewChannelRegistry(db)
	require.NoError(t, err)
	return registry
}

func testChannel() *lnwallet.Channel {
	var chanID lnwallet.ChannelID
	chanID[0] = 0x42

	outpoint := wire.OutPoint{Index: 1}
	ch := lnwallet.NewChannel(chanID, outpoint, btcutil.Amount(1_000_000),
		500_000_000, 500_000_000)
	ch.MarkOpen()
	return ch
}

func TestChannelActorAddHTLCSerializesThroughCommandChannel(t *testing.T) {
	registry := makeTestRegistry(t)
	ch := testChannel()
	require.NoError(t, registry.Register(ch))

	actor := NewChannelActor(ch, registry)
	actor.Start()
	defer actor.Stop()

	htlc := &lnwallet.HTLCInfo{
		Direction:  lnwallet.Offered,
		CltvExpiry: 500,
		Amount:     10_000_000,
	}
	require.NoError(t, actor.AddHTLC(1, htlc))

	snap := actor.Snapshot()
	require.Equal(t, 1, snap.NumHTLCs)
	require.Equal(t, lnwallet.MilliSatoshi(490_000_000), snap.LocalBalance)

	reloaded, err := registry.Lookup(ch.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.SnapshotHTLCs(), 1)
}

func TestChannelActorCommitmentSignedAdvancesIndex(t *testing.T) {
	registry := makeTestRegistry(t)
	ch := testChannel()
	require.NoError(t, registry.Register(ch))

	actor := NewChannelActor(ch, registry)
	actor.Start()
	defer actor.Stop()

	num, err := actor.CommitmentSigned()
	require.NoError(t, err)
	require.EqualValues(t, 1, num)

	num, err = actor.RevokeAndAck()
	require.NoError(t, err)
	require.EqualValues(t, 1, num)
}

func TestHubAddAndRemoveChannel(t *testing.T) {
	registry := makeTestRegistry(t)
	hub := NewHub(registry)

	ch := testChannel()
	require.NoError(t, registry.Register(ch))

	hub.AddChannel(ch)
	require.Equal(t, 1, hub.NumActors())

	actor, err := hub.Actor(ch.ID)
	require.NoError(t, err)
	require.NotNil(t, actor)

	require.NoError(t, hub.RemoveChannel(ch.ID))
	require.Equal(t, 0, hub.NumActors())

	_, err = hub.Actor(ch.ID)
	require.Equal(t, ErrActorNotFound, err)
}

func TestHubStopStopsAllActors(t *testing.T) {
	registry := makeTestRegistry(t)
	hub := NewHub(registry)

	for i := byte(0); i < 3; i++ {
		ch := testChannel()
		ch.ID[1] = i
		require.NoError(t, registry.Register(ch))
		hub.AddChannel(ch)
	}
	require.Equal(t, 3, hub.NumActors())

	hub.Stop()
	require.Equal(t, 0, hub.NumActors())
}
