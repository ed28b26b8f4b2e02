package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandvikcode/pubsuber-go/internal/retry"
	"github.com/sandvikcode/pubsuber-go/internal/transport"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
)

// MetricSink receives operational metrics from the ack loop.
type MetricSink interface {
	OnKeepAliveQueueSize(size int)
}

// threadData is the state owned by one of the two background loops:
// a set of newly added subscriptions (input), a set marked for
// removal, and the active set the loop itself iterates. input,
// removed and the wake channel may be touched from any goroutine;
// active is modified only by the owning loop, always under mu.
// Executor.Done also reads the ack loop's active set, under mu, from
// whichever goroutine completes a message.
//
// This is the Go-idiomatic rendition of the mutex+condvar pattern
// described in spec.md §5/§9: a notify channel takes the place of a
// condition variable, since sync.Cond has no timeout-aware Wait and a
// buffered channel composes naturally with select+time.After.
type threadData[T any] struct {
	mu      sync.Mutex
	input   map[string]T
	removed []string
	active  map[string]T
	wake    chan struct{}
}

func newThreadData[T any]() *threadData[T] {
	return &threadData[T]{
		input:  make(map[string]T),
		active: make(map[string]T),
		wake:   make(chan struct{}, 1),
	}
}

func (td *threadData[T]) add(name string, v T) {
	td.mu.Lock()
	td.input[name] = v
	td.mu.Unlock()
	td.notify()
}

func (td *threadData[T]) remove(name string) {
	td.mu.Lock()
	td.removed = append(td.removed, name)
	td.mu.Unlock()
	td.notify()
}

func (td *threadData[T]) notify() {
	select {
	case td.wake <- struct{}{}:
	default:
	}
}

func (td *threadData[T]) removeFromActive() {
	td.mu.Lock()
	defer td.mu.Unlock()
	for _, name := range td.removed {
		delete(td.active, name)
	}
	td.removed = nil
}

// mergeInputToActiveLocked merges input into active. Caller must hold
// td.mu.
func (td *threadData[T]) mergeInputToActiveLocked() {
	for name, v := range td.input {
		td.active[name] = v
	}
	td.input = make(map[string]T)
}

func (td *threadData[T]) wait(d time.Duration) {
	select {
	case <-td.wake:
	case <-time.After(d):
	}
}

// Executor runs the pull loop and the ack loop for every active
// subscription of one client. It is the Go equivalent of the
// original's Executor: the two background goroutines that make up
// the subscription receiver.
type Executor struct {
	transport *transport.Transport
	sub       pubsubpb.SubscriberClient
	log       zerolog.Logger

	pull *threadData[*pullState]
	ack  *threadData[*ackState]

	metricMu sync.Mutex
	metric   MetricSink

	needStop atomic.Bool
	done     chan struct{}
}

// NewExecutor starts the pull and ack loop goroutines.
func NewExecutor(tr *transport.Transport, sub pubsubpb.SubscriberClient, log zerolog.Logger) *Executor {
	e := &Executor{
		transport: tr,
		sub:       sub,
		log:       log,
		pull:      newThreadData[*pullState](),
		ack:       newThreadData[*ackState](),
		done:      make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.pullLoop() }()
	go func() { defer wg.Done(); e.ackLoop() }()
	go func() { wg.Wait(); close(e.done) }()

	return e
}

// AddSubscription registers a subscription with both loops.
func (e *Executor) AddSubscription(name string, maxPrefetch int32, callback Callback, policies retry.Policies) {
	ack := newAckState(name, policies)
	pull := &pullState{subscriptionName: name, maxPrefetch: maxPrefetch, callback: callback, ack: ack}

	e.pull.add(name, pull)
	e.ack.add(name, ack)
}

// RemoveSubscription marks a subscription for removal from both
// loops; they drop it on their next iteration.
func (e *Executor) RemoveSubscription(name string) {
	e.pull.remove(name)
	e.ack.remove(name)
}

// Done reports an ackId's completion for the named subscription, if
// it is still active. It is a no-op if the subscription has already
// been removed.
func (e *Executor) Done(subscriptionName, ackID string, receiveTime time.Time, action DoneAction) {
	e.ack.mu.Lock()
	st, ok := e.ack.active[subscriptionName]
	if !ok {
		st, ok = e.ack.input[subscriptionName]
	}
	e.ack.mu.Unlock()
	if ok {
		st.done(ackID, receiveTime, action)
	}
}

// SetMetricSink installs (or clears, with nil) the sink that receives
// keep-alive queue depth reports.
func (e *Executor) SetMetricSink(sink MetricSink) {
	e.metricMu.Lock()
	e.metric = sink
	e.metricMu.Unlock()
}

func (e *Executor) reportKeepAliveMetric(size int) {
	e.metricMu.Lock()
	sink := e.metric
	e.metricMu.Unlock()
	if sink != nil {
		sink.OnKeepAliveQueueSize(size)
	}
}

// Stop signals both loops to exit and waits for them to join.
func (e *Executor) Stop() {
	e.needStop.Store(true)
	e.pull.notify()
	e.ack.notify()
	<-e.done
}

func (e *Executor) pullLoop() {
	ctx := context.Background()

	for !e.needStop.Load() {
		e.pull.removeFromActive()

		e.pull.mu.Lock()
		noActive := len(e.pull.active) == 0
		noInput := len(e.pull.input) == 0
		if noActive && noInput {
			e.pull.mu.Unlock()
			e.pull.wait(100 * time.Millisecond)
			e.transport.EnsureConnected(channelConnectTimeoutConst)
			if e.needStop.Load() {
				continue
			}
			e.pull.mu.Lock()
		}
		e.pull.mergeInputToActiveLocked()
		e.pull.mu.Unlock()

		start := time.Now()
		for _, ps := range e.pull.active {
			ps.pull(ctx, e.sub, e.log)
		}
		elapsed := time.Since(start)

		if elapsed < pullLowRateConst {
			e.pull.wait(pullLowRateConst - elapsed)
		}
	}
}

func (e *Executor) ackLoop() {
	ctx := context.Background()
	sleep := 500 * time.Millisecond

	for !e.needStop.Load() {
		e.ack.removeFromActive()

		e.ack.mu.Lock()
		keepAliveCount := 0
		for _, st := range e.ack.active {
			keepAliveCount += st.keepAliveCount()
		}
		e.reportKeepAliveMetric(keepAliveCount)

		inputCount := 0
		for _, st := range e.ack.active {
			st.lock()
			inputCount += st.inputCountLocked()
			st.unlock()
		}

		if inputCount == 0 && keepAliveCount == 0 {
			e.ack.mu.Unlock()
			e.ack.wait(sleep)
			if e.needStop.Load() {
				continue
			}
			e.ack.mu.Lock()
		}
		e.ack.mergeInputToActiveLocked()

		type pending struct {
			st   *ackState
			ack  ackSet
			nack ackSet
		}
		var work []pending
		for _, st := range e.ack.active {
			st.lock()
			a, n := st.mergeInputLocked()
			st.unlock()
			work = append(work, pending{st, a, n})
		}
		e.ack.mu.Unlock()

		e.transport.EnsureConnected(channelConnectTimeoutConst)

		sleep = soLong
		for _, w := range work {
			next := w.st.processModAcks(ctx, e.sub, w.ack, w.nack)
			if next < sleep {
				sleep = next
			}
		}
		if sleep == soLong {
			sleep = 500 * time.Millisecond
		}
	}
}

const (
	channelConnectTimeoutConst = 5 * time.Second
	pullLowRateConst           = 250 * time.Millisecond
)
