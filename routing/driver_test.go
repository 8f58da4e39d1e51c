package routing

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/peerlink"
	"github.com/lightningnetwork/lndcore/routeoracle"
)

// fakeChain is a static chainquery.Query test double.
type fakeChain int32

func (c fakeChain) GetBlockCount(context.Context) (int32, error) { return int32(c), nil }

// fakeOracle is a scripted routeoracle.Oracle test double: each call pops
// the next entry off a queue of canned (hops, err) results, letting a test
// drive a sequence of failures followed by an eventual success the way S5
// (routing retry) requires.
type fakeOracle struct {
	calls   int
	results []oracleResult
}

type oracleResult struct {
	hops []routeoracle.Hop
	err  error
}

func (o *fakeOracle) Calculate(ctx context.Context, source, dest [33]byte, finalCLTV uint32,
	amountMsat uint64, hints []routeoracle.Hop, skip routeoracle.SkipPredicate) ([]routeoracle.Hop, error) {

	idx := o.calls
	if idx >= len(o.results) {
		idx = len(o.results) - 1
	}
	o.calls++

	r := o.results[idx]
	if r.err != nil {
		return nil, r.err
	}

	out := make([]routeoracle.Hop, 0, len(r.hops))
	for _, h := range r.hops {
		if skip != nil && skip(h.ShortChanID) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// fakePeers is a peerlink.Link test double whose Search/IsInited/Send
// behavior is scripted per peer ID, letting a test simulate an
// unresponsive first hop.
type fakePeers struct {
	reachable map[peerlink.PeerID]bool
	sendErr   error
	sent      int
}

func (p *fakePeers) Connect(context.Context, peerlink.PeerID, string, uint16) error { return nil }
func (p *fakePeers) Disconnect(context.Context, peerlink.PeerID) error              { return nil }
func (p *fakePeers) Send(ctx context.Context, id peerlink.PeerID, msg []byte) error {
	p.sent++
	return p.sendErr
}
func (p *fakePeers) IsInited(id peerlink.PeerID) bool { return p.reachable[id] }
func (p *fakePeers) Search(id peerlink.PeerID) bool   { return p.reachable[id] }

func makeTestSkipSet(t *testing.T) *channeldb.SkipSet {
	t.Helper()

	tempDir, err := ioutil.TempDir("", "routingdb")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := channeldb.Open(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return channeldb.NewSkipSet(db)
}

func hop(shortChanID uint64, pubKeyByte byte) routeoracle.Hop {
	var pk [33]byte
	pk[0] = pubKeyByte
	return routeoracle.Hop{PubKey: pk, ShortChanID: shortChanID, AmtToForward: 1000, CLTVDelta: 40}
}

func TestRoutePaySucceedsFirstTry(t *testing.T) {
	skips := makeTestSkipSet(t)
	oracle := &fakeOracle{results: []oracleResult{{hops: []routeoracle.Hop{hop(1, 0xAA)}}}}
	peers := &fakePeers{reachable: map[peerlink.PeerID]bool{{0xAA}: true}}

	d := NewDriver(skips, fakeChain(100), oracle, peers)

	a := &Attempt{AmountMsat: 1000, MinFinalCLTV: 10}
	outcome, err := d.RoutePay(context.Background(), a)
	require.Nil(t, err)
	require.Len(t, outcome.Hops, 1)
	require.Equal(t, 1, peers.sent)
}

func TestRoutePayFirstHopUnreachableAddsTemporarySkip(t *testing.T) {
	skips := makeTestSkipSet(t)
	oracle := &fakeOracle{results: []oracleResult{{hops: []routeoracle.Hop{hop(7, 0xBB)}}}}
	peers := &fakePeers{reachable: map[peerlink.PeerID]bool{}}

	d := NewDriver(skips, fakeChain(100), oracle, peers)

	a := &Attempt{AmountMsat: 1000, MinFinalCLTV: 10}
	_, oerr := d.RoutePay(context.Background(), a)
	require.NotNil(t, oerr)
	require.Equal(t, routeoracle.ErrCodePayStop, oerr.Code)

	skipped, err := skips.IsSkipped(7)
	require.NoError(t, err)
	require.True(t, skipped)
	require.NotEmpty(t, d.LastPayErr())
}

func TestRoutePayClearsTemporarySkipButContinueDoesNot(t *testing.T) {
	skips := makeTestSkipSet(t)
	require.NoError(t, skips.AddTemporary(99))

	oracle := &fakeOracle{results: []oracleResult{{hops: []routeoracle.Hop{hop(1, 0xAA)}}}}
	peers := &fakePeers{reachable: map[peerlink.PeerID]bool{{0xAA}: true}}

	d := NewDriver(skips, fakeChain(100), oracle, peers)

	a := &Attempt{AmountMsat: 1000, MinFinalCLTV: 10}
	_, err := d.RoutePay(context.Background(), a)
	require.Nil(t, err)

	skipped, serr := skips.IsSkipped(99)
	require.NoError(t, serr)
	require.False(t, skipped, "RoutePay must clear the temporary skip set before attempting")

	require.NoError(t, skips.AddTemporary(99))
	_, err = d.Continue(context.Background(), a)
	require.Nil(t, err)

	skipped, serr = skips.IsSkipped(99)
	require.NoError(t, serr)
	require.True(t, skipped, "Continue must not clear the temporary skip set")
}

func TestContinueRetriesUntilSuccessAfterFirstHopFailure(t *testing.T) {
	skips := makeTestSkipSet(t)

	oracle := &fakeOracle{results: []oracleResult{
		{hops: []routeoracle.Hop{hop(1, 0xAA)}},
		{hops: []routeoracle.Hop{hop(2, 0xCC)}},
	}}
	peers := &fakePeers{reachable: map[peerlink.PeerID]bool{{0xCC}: true}}

	d := NewDriver(skips, fakeChain(100), oracle, peers)

	a := &Attempt{AmountMsat: 1000, MinFinalCLTV: 10}
	_, oerr := d.RoutePay(context.Background(), a)
	require.NotNil(t, oerr)

	outcome, oerr := d.Continue(context.Background(), a)
	require.Nil(t, oerr)
	require.Len(t, outcome.Hops, 1)
	require.Equal(t, uint64(2), outcome.Hops[0].ShortChanID)
}

func TestAttemptExhaustsRetryBudget(t *testing.T) {
	skips := makeTestSkipSet(t)

	// A fresh first-hop channel per attempt, so every attempt reaches the
	// unreachable first hop and counts against the budget instead of
	// ending early on a route emptied by the skip set.
	results := make([]oracleResult, 0, maxAttempts)
	for i := 0; i < maxAttempts; i++ {
		results = append(results, oracleResult{hops: []routeoracle.Hop{hop(uint64(i+1), 0xAA)}})
	}
	oracle := &fakeOracle{results: results}
	peers := &fakePeers{reachable: map[peerlink.PeerID]bool{}}

	d := NewDriver(skips, fakeChain(100), oracle, peers)

	a := &Attempt{AmountMsat: 1000, MinFinalCLTV: 10}
	_, oerr := d.RoutePay(context.Background(), a)
	require.NotNil(t, oerr)

	for i := 0; i < maxAttempts; i++ {
		_, oerr = d.Continue(context.Background(), a)
	}

	require.NotNil(t, oerr)
	require.Equal(t, routeoracle.ErrCodeNotFound, oerr.Code)
	require.Equal(t, "payment fail: retries exhausted", oerr.Message)
}

func TestOracleNotFoundSurfacesAsNotFound(t *testing.T) {
	skips := makeTestSkipSet(t)
	oracle := &fakeOracle{results: []oracleResult{{err: routeoracle.ErrNotFound}}}
	peers := &fakePeers{}

	d := NewDriver(skips, fakeChain(100), oracle, peers)

	a := &Attempt{AmountMsat: 1000, MinFinalCLTV: 10}
	_, oerr := d.RoutePay(context.Background(), a)
	require.NotNil(t, oerr)
	require.Equal(t, routeoracle.ErrCodeNotFound, oerr.Code)
}
