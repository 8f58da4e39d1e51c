// Package routing is the payment/route driver (component G, §4.G): it
// drives invoice payment attempts through the routing oracle, retrying with
// an expanding temporary edge-skip set until the payment succeeds or the
// retry budget is exhausted.
package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lightningnetwork/lndcore/chainquery"
	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/peerlink"
	"github.com/lightningnetwork/lndcore/routeoracle"
)

// log is the package-wide logger, following the teacher's per-package
// btclog convention.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// maxAttempts bounds the routepay_cont retry loop (§4.G step 8).
const maxAttempts = 10

// retryBackoff paces the scheduler between automatic retries when the
// daemon drives routepay_cont itself (rather than an external caller doing
// so), using the teacher's ticker package instead of a bespoke sleep loop.
const retryBackoff = 2 * time.Second

// Attempt is everything a single routepay invocation needs and the state
// it accumulates across routepay_cont retries (§4.G steps 5-8).
type Attempt struct {
	PaymentHash  [32]byte
	AmountMsat   uint64
	Payee        [33]byte
	Payer        [33]byte
	MinFinalCLTV uint32

	tries int
}

// Outcome is the result of one RoutePay/Continue call.
type Outcome struct {
	Hops []routeoracle.Hop
}

// Driver implements §4.G's routepay/routepay_cont flow. It owns the
// process-wide last-payment-error state and the saved-invoice map that lets
// a retry resume without the caller repeating every parameter, per the
// "retry owns the invoice until terminal outcome" policy (§9).
type Driver struct {
	Skips  *channeldb.SkipSet
	Chain  chainquery.Query
	Oracle routeoracle.Oracle
	Peers  peerlink.Link

	mu         sync.Mutex
	lastPayErr string
	pending    map[[32]byte]*Attempt

	retryTicker ticker.Ticker
	quit        chan struct{}
	wg          sync.WaitGroup
}

// NewDriver constructs a Driver wired to its external collaborators.
func NewDriver(skips *channeldb.SkipSet, chain chainquery.Query,
	oracle routeoracle.Oracle, peers peerlink.Link) *Driver {

	return &Driver{
		Skips:       skips,
		Chain:       chain,
		Oracle:      oracle,
		Peers:       peers,
		pending:     make(map[[32]byte]*Attempt),
		retryTicker: ticker.New(retryBackoff),
		quit:        make(chan struct{}),
	}
}

// Start begins the background retry loop: every tick, every still-pending
// attempt (one a prior routepay/routepay_cont left in the retry map after
// adding its failing hop to the temporary skip set) is resubmitted via
// Continue, so a caller need not poll routepay_cont itself.
func (d *Driver) Start(ctx context.Context) {
	d.retryTicker.Resume()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.retryTicker.Stop()

		for {
			select {
			case <-d.retryTicker.Ticks():
				d.retryPending(ctx)
			case <-d.quit:
				return
			}
		}
	}()
}

// Stop halts the background retry loop and waits for it to exit, per §5's
// cancellation model.
func (d *Driver) Stop() {
	close(d.quit)
	d.wg.Wait()
}

func (d *Driver) retryPending(ctx context.Context) {
	d.mu.Lock()
	attempts := make([]*Attempt, 0, len(d.pending))
	for _, a := range d.pending {
		attempts = append(attempts, a)
	}
	d.mu.Unlock()

	for _, a := range attempts {
		if _, err := d.Continue(ctx, a); err != nil {
			log.Debugf("routepay_cont retry for hash=%x failed: %v", a.PaymentHash, err)
		}
	}
}

// LastPayErr returns the most recently recorded payment failure message,
// backing the getlasterror/getinfo RPCs.
func (d *Driver) LastPayErr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastPayErr
}

func (d *Driver) setLastPayErr(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastPayErr = msg
}

// RoutePay begins a fresh payment attempt: it clears the temporary skip set
// and any retry state for this hash before computing a route (§4.G step 1).
func (d *Driver) RoutePay(ctx context.Context, a *Attempt) (*Outcome, *routeoracle.Error) {
	if err := d.Skips.ClearTemporary(); err != nil {
		return nil, &routeoracle.Error{Code: routeoracle.ErrCodeInternal, Message: err.Error()}
	}

	d.mu.Lock()
	delete(d.pending, a.PaymentHash)
	d.mu.Unlock()

	return d.attempt(ctx, a)
}

// Continue retries a previously-started payment without clearing the skip
// set or try-counter (§4.G: "skip this step on routepay_cont").
func (d *Driver) Continue(ctx context.Context, a *Attempt) (*Outcome, *routeoracle.Error) {
	return d.attempt(ctx, a)
}

func (d *Driver) attempt(ctx context.Context, a *Attempt) (*Outcome, *routeoracle.Error) {
	d.mu.Lock()
	saved, known := d.pending[a.PaymentHash]
	if known {
		a.tries = saved.tries
	}
	d.mu.Unlock()

	if a.tries >= maxAttempts {
		d.Skips.ClearTemporary()
		d.mu.Lock()
		delete(d.pending, a.PaymentHash)
		d.mu.Unlock()
		d.setLastPayErr(fmt.Sprintf("[%s] payment fail", time.Now().UTC().Format(time.RFC3339)))
		return nil, &routeoracle.Error{
			Code:    routeoracle.ErrCodeNotFound,
			Message: "payment fail: retries exhausted",
		}
	}

	height, err := d.Chain.GetBlockCount(ctx)
	if err != nil {
		return nil, &routeoracle.Error{Code: routeoracle.ErrCodeInternal, Message: err.Error()}
	}
	finalCLTV := uint32(height) + a.MinFinalCLTV

	skip := func(shortChanID uint64) bool {
		skipped, _ := d.Skips.IsSkipped(shortChanID)
		return skipped
	}

	hops, err := d.Oracle.Calculate(ctx, a.Payer, a.Payee, finalCLTV, a.AmountMsat, nil, skip)
	if err != nil {
		d.setLastPayErr(fmt.Sprintf("[%s] %v", time.Now().UTC().Format(time.RFC3339), err))
		return nil, &routeoracle.Error{Code: routeoracle.CodeForOracleErr(err), Message: err.Error()}
	}
	if len(hops) == 0 {
		return nil, &routeoracle.Error{Code: routeoracle.ErrCodeNotFound, Message: "empty route"}
	}

	a.tries++
	d.mu.Lock()
	d.pending[a.PaymentHash] = a
	d.mu.Unlock()

	firstHop := peerlink.PeerID(hops[0].PubKey)
	if !d.Peers.Search(firstHop) || !d.Peers.IsInited(firstHop) {
		return nil, d.fail(a, hops[0].ShortChanID, "first hop not connected")
	}

	if err := d.Peers.Send(ctx, firstHop, nil); err != nil {
		return nil, d.fail(a, hops[0].ShortChanID, fmt.Sprintf("submitting htlc: %v", err))
	}

	log.Infof("payment: hash=%x payee=%x total_msat=%d amount_msat=%d",
		a.PaymentHash, a.Payee, a.AmountMsat, a.AmountMsat)

	d.mu.Lock()
	delete(d.pending, a.PaymentHash)
	d.mu.Unlock()

	return &Outcome{Hops: hops}, nil
}

// fail implements §4.G step 7: add hop[0]'s outgoing channel to the
// temporary skip set and leave the attempt pending for a routepay_cont.
func (d *Driver) fail(a *Attempt, failedShortChanID uint64, reason string) *routeoracle.Error {
	d.Skips.AddTemporary(failedShortChanID)
	d.setLastPayErr(fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), reason))
	return &routeoracle.Error{Code: routeoracle.ErrCodePayStop, Message: reason}
}
