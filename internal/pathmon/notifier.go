package pathmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/pathwatchd/internal/runtime"
)

// Options configures a Notifier. The zero value gives immediate evaluation,
// no expiration re-notify and an internally owned delivery queue.
type Options struct {
	// Delegate, when non-nil, overrides the built-in significance policy.
	Delegate Delegate

	// DebounceDelay coalesces bursts of raw events: the policy runs only
	// after this much quiet time, against the latest event. Zero disables
	// coalescing.
	DebounceDelay time.Duration

	// InterfaceExpiration re-notifies a stable connection whose snapshot
	// is older than this. Zero disables the check.
	InterfaceExpiration time.Duration

	// IgnoreFirstUpdate silently consumes the first evaluated event after
	// a subscriber is installed.
	IgnoreFirstUpdate bool

	// Lookup resolves interface addresses. Defaults to the platform
	// lookup via the net package.
	Lookup AddressLookup

	// Queue is the delivery context for subscriber callbacks. When nil
	// the notifier creates and owns one, closing it on Close.
	Queue *runtime.SerialQueue
}

// Notifier watches a Source, reduces raw path events to snapshots, and
// notifies at most one subscriber of significant changes. The source runs
// for the notifier's whole lifetime; subscribing and unsubscribing are
// independent of it.
type Notifier struct {
	lookup    AddressLookup
	queue     *runtime.SerialQueue
	ownsQueue bool
	cancel    context.CancelFunc

	mu        sync.Mutex
	pol       policy
	debounce  *debouncer // nil when no delay configured
	candidate *Snapshot
	callback  func(*Snapshot)
	closed    bool

	// current is the last committed snapshot, readable from any
	// goroutine. Store(nil) records loss of connectivity.
	current atomic.Pointer[Snapshot]
}

// New starts the source immediately and returns without waiting for the
// first OS event; Current is nil until one arrives.
func New(source Source, opts Options) *Notifier {
	n := &Notifier{
		lookup: opts.Lookup,
		queue:  opts.Queue,
		pol: policy{
			delegate:          opts.Delegate,
			expiration:        opts.InterfaceExpiration,
			ignoreFirstUpdate: opts.IgnoreFirstUpdate,
		},
	}
	if n.lookup == nil {
		n.lookup = defaultAddressLookup
	}
	if n.queue == nil {
		n.queue = runtime.NewSerialQueue()
		n.ownsQueue = true
	}
	if opts.DebounceDelay > 0 {
		n.debounce = newDebouncer(opts.DebounceDelay, n.settle)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go func() {
		if err := source.Start(ctx, n.handleUpdate); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Path source terminated")
		}
	}()
	return n
}

// Start installs callback as the subscriber, replacing any previous one.
// Significant changes are delivered on the notifier's queue, carrying the
// new current snapshot; nil signals loss of all usable interfaces.
func (n *Notifier) Start(callback func(*Snapshot)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.callback = callback
}

// Stop removes the subscriber. The notifier keeps tracking the current
// snapshot but issues no further notifications. Safe to call repeatedly and
// before Start.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callback = nil
	if n.debounce != nil {
		n.debounce.cancel()
		// Commit whatever was pending so a later subscriber sees
		// accurate state.
		n.current.Store(n.candidate)
	}
}

// Close tears the notifier down: unsubscribes, cancels the source and stops
// any pending debounce. Idempotent; no callback fires after Close returns.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.callback = nil
	n.mu.Unlock()

	if n.debounce != nil {
		n.debounce.stop()
	}
	n.cancel()
	if n.ownsQueue {
		n.queue.Close()
	}
	return nil
}

// Current returns the last committed snapshot, nil when no usable path has
// been observed. Safe from any goroutine.
func (n *Notifier) Current() *Snapshot {
	return n.current.Load()
}

func (n *Notifier) handleUpdate(u PathUpdate) {
	snap := snapshotFromUpdate(u, n.lookup, time.Now().Unix())
	log.WithFields(log.Fields{
		"satisfied":   u.Satisfied,
		"interfaces":  len(u.Interfaces),
		"fingerprint": snap.Fingerprint(),
	}).Trace("Raw path update")
	n.observe(snap)
}

// observe records snap as the candidate and routes it through the pipeline.
// The source delivers serially, so candidate always reflects the most recent
// raw event; during a debounce window earlier candidates are simply
// overwritten (last-write-wins).
func (n *Notifier) observe(snap *Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.candidate = snap

	if n.callback == nil {
		// No subscriber: track state silently so a late subscriber
		// sees the real current path without a spurious notification.
		n.current.Store(snap)
		return
	}
	if n.debounce != nil {
		n.debounce.touch()
		return
	}
	n.settleLocked()
}

// settle runs when the debounce timer fires.
func (n *Notifier) settle() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if n.callback == nil {
		n.current.Store(n.candidate)
		return
	}
	n.settleLocked()
}

func (n *Notifier) settleLocked() {
	cand := n.candidate
	notify := n.pol.evaluate(cand, n.current.Load())

	// Commit is unconditional: the decision to notify is decoupled from
	// the commit of state.
	n.current.Store(cand)

	if !notify {
		return
	}
	cb := n.callback
	log.WithFields(log.Fields{
		"snapshot":    cand.String(),
		"fingerprint": cand.Fingerprint(),
	}).Debug("Dispatching path change")
	n.queue.Enqueue(func() { cb(cand) })
}
