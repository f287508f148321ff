package stream

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"tweet-relay/models"
)

// RateLimitFloor is the minimum reconnection delay after a rate-limit response.
const RateLimitFloor = 30 * time.Second

// StatusEnhanceYourCalm is the filter stream's legacy rate-limit status.
const StatusEnhanceYourCalm = 420

// State is the lifecycle state of the stream connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnectPending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnectPending:
		return "reconnect-pending"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StreamError describes a failed or rejected stream connection.
type StreamError struct {
	Status     int
	StatusText string
	URL        string
}

func (e *StreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("stream error: %s", e.StatusText)
	}
	return fmt.Sprintf("stream error %d %s (%s)", e.Status, e.StatusText, e.URL)
}

// RateLimited reports whether the upstream asked us to slow down.
func (e *StreamError) RateLimited() bool {
	return e.Status == StatusEnhanceYourCalm || e.Status == http.StatusTooManyRequests
}

// Events receives the notifications of a Transport.
type Events interface {
	OnStarted()
	OnData(tweet *models.Tweet)
	OnError(err *StreamError)
	OnEnded()
}

// Transport is the connection to the filter stream.
// Create and MarkDisconnected must not block and must not call Events
// synchronously; events are delivered from the transport's own goroutine.
type Transport interface {
	// Create (re)subscribes to the given user ids, replacing any previous
	// connection. events receives the notifications of this connection only.
	Create(userIDs []string, events Events)
	// MarkDisconnected tears down the current connection without emitting events.
	MarkDisconnected()
}

// PostHandler receives every tweet delivered by the stream, in order.
type PostHandler func(tweet *models.Tweet)

// Options configures a Controller.
type Options struct {
	WatchdogDelay time.Duration
	BackoffStart  time.Duration
	BackoffMax    time.Duration
	Scheduler     Scheduler
	// OnStateChange is called outside the controller lock after every
	// transition, one call at a time. A transition superseded before it
	// could be reported is skipped, so the last call always carries the
	// current state. It must not call back into the Controller.
	OnStateChange func(State)
}

// Controller owns the stream connection lifecycle: it reconnects with
// exponential backoff after errors and forces a reconnection when the
// stream stays silent for longer than the watchdog delay.
type Controller struct {
	mu sync.Mutex

	newTransport  func() Transport
	transport     Transport
	handler       PostHandler
	backoff       *Backoff
	scheduler     Scheduler
	watchdogDelay time.Duration
	onStateChange func(State)

	state    State
	followed []string
	connGen  uint64

	reconnect    Timer
	reconnectGen uint64
	watchdog     Timer
	watchdogGen  uint64

	pending []stateChange
	seq     uint64

	notifyMu sync.Mutex
	notified uint64
}

type stateChange struct {
	state State
	seq   uint64
}

// NewController builds a Controller. newTransport is called once, on the
// first Start, and the resulting transport is reused across reconnects.
func NewController(newTransport func() Transport, handler PostHandler, opts Options) *Controller {
	if opts.BackoffStart <= 0 {
		opts.BackoffStart = 2 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 240 * time.Second
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	return &Controller{
		newTransport:  newTransport,
		handler:       handler,
		backoff:       NewBackoff(opts.BackoffStart, opts.BackoffMax),
		scheduler:     opts.Scheduler,
		watchdogDelay: opts.WatchdogDelay,
		onStateChange: opts.OnStateChange,
		state:         StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FollowedIDs returns the last user id set passed to Start.
func (c *Controller) FollowedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.followed...)
}

// Start subscribes the stream to userIDs. It does nothing while a
// reconnection is pending.
func (c *Controller) Start(userIDs []string) {
	c.mu.Lock()
	defer c.unlock()

	if c.state == StateReconnectPending {
		log.Printf("[Stream] Start ignored: a reconnection is already pending")
		return
	}
	c.connectLocked(userIDs)
}

func (c *Controller) connectLocked(userIDs []string) {
	c.followed = append([]string(nil), userIDs...)

	if len(userIDs) == 0 {
		if c.state == StateConnecting || c.state == StateStreaming {
			c.disconnectLocked()
		}
		c.stopWatchdog()
		c.setState(StateIdle)
		log.Printf("[Stream] No followed users, stream stays idle")
		return
	}

	if c.transport == nil {
		c.transport = c.newTransport()
	}
	c.setState(StateConnecting)
	log.Printf("[Stream] Connecting for %d followed users", len(userIDs))
	c.connGen++
	c.transport.Create(c.followed, &connection{c: c, gen: c.connGen})
	// A connection attempt that never answers is treated like a silent stream.
	c.armWatchdog()
}

// disconnectLocked tears the current connection down. Its pending events
// are dropped from now on.
func (c *Controller) disconnectLocked() {
	c.connGen++
	if c.transport != nil {
		c.transport.MarkDisconnected()
	}
}

// connection is the Events sink of a single Create call.
type connection struct {
	c   *Controller
	gen uint64
}

func (cn *connection) OnStarted() { cn.c.started(cn) }
func (cn *connection) OnData(tweet *models.Tweet) { cn.c.data(cn, tweet) }
func (cn *connection) OnError(err *StreamError) { cn.c.failed(cn, err) }
func (cn *connection) OnEnded() { cn.c.ended(cn) }

// current reports whether events of cn still apply. A nil cn stands for
// events reported on the Controller itself.
func (c *Controller) current(cn *connection) bool {
	return cn == nil || cn.gen == c.connGen
}

// OnStarted marks the stream as flowing.
func (c *Controller) OnStarted() { c.started(nil) }

func (c *Controller) started(cn *connection) {
	c.mu.Lock()
	defer c.unlock()

	if c.state == StateStopped || c.state == StateIdle || !c.current(cn) {
		return
	}
	c.setState(StateStreaming)
	c.backoff.Reset()
	c.armWatchdog()
	log.Printf("[Stream] Stream started")
}

// OnData re-arms the watchdog and forwards the tweet.
func (c *Controller) OnData(tweet *models.Tweet) { c.data(nil, tweet) }

func (c *Controller) data(cn *connection, tweet *models.Tweet) {
	c.mu.Lock()
	if c.state == StateStopped || !c.current(cn) {
		c.unlock()
		return
	}
	c.armWatchdog()
	handler := c.handler
	c.unlock()

	if handler != nil && tweet != nil {
		handler(tweet)
	}
}

// OnError schedules a reconnection, honouring the rate-limit floor.
func (c *Controller) OnError(err *StreamError) { c.failed(nil, err) }

func (c *Controller) failed(cn *connection, err *StreamError) {
	c.mu.Lock()
	defer c.unlock()

	if c.state == StateStopped || !c.current(cn) {
		return
	}
	c.disconnectLocked()
	if err == nil {
		err = &StreamError{StatusText: "unknown error"}
	}
	log.Printf("[Stream] %v", err)

	if err.RateLimited() && c.backoff.Value() < RateLimitFloor {
		c.backoff.ForceTo(RateLimitFloor)
	}
	delay := c.backoff.Value()
	c.backoff.Advance()
	c.scheduleReconnect(delay)
}

// OnEnded schedules a reconnection after the stream closed.
func (c *Controller) OnEnded() { c.ended(nil) }

func (c *Controller) ended(cn *connection) {
	c.mu.Lock()
	defer c.unlock()

	if c.state == StateStopped || !c.current(cn) {
		return
	}
	c.disconnectLocked()
	log.Printf("[Stream] Stream ended by upstream")

	delay := c.backoff.Value()
	c.backoff.Advance()
	c.scheduleReconnect(delay)
}

// OnWatchdogFire forces a reconnection after a period of silence.
func (c *Controller) OnWatchdogFire() {
	c.mu.Lock()
	defer c.unlock()
	c.watchdogFiredLocked()
}

func (c *Controller) watchdogFiredLocked() {
	if c.state == StateStopped || c.state == StateIdle {
		return
	}
	if c.state == StateReconnectPending {
		log.Printf("[Stream] Watchdog fired while a reconnection is pending, ignoring")
		return
	}
	log.Printf("[Stream] No data for %s, forcing reconnection", c.watchdogDelay)
	c.disconnectLocked()
	c.connectLocked(c.followed)
}

// Destroy tears the stream down and cancels every pending timer.
// Events are ignored until the next Start.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.unlock()

	c.disconnectLocked()
	c.stopReconnect()
	c.stopWatchdog()
	c.setState(StateStopped)
	log.Printf("[Stream] Controller stopped")
}

func (c *Controller) scheduleReconnect(delay time.Duration) {
	c.stopReconnect()
	c.setState(StateReconnectPending)

	gen := c.reconnectGen
	c.reconnect = c.scheduler.AfterFunc(delay, func() { c.reconnectFired(gen) })
	log.Printf("[Stream] Reconnecting in %s", delay)
}

func (c *Controller) reconnectFired(gen uint64) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.reconnectGen || c.state != StateReconnectPending {
		return
	}
	c.reconnect = nil
	c.connectLocked(c.followed)
}

func (c *Controller) stopReconnect() {
	c.reconnectGen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *Controller) armWatchdog() {
	if c.watchdogDelay <= 0 {
		return
	}
	c.stopWatchdog()
	gen := c.watchdogGen
	c.watchdog = c.scheduler.AfterFunc(c.watchdogDelay, func() { c.watchdogFired(gen) })
}

func (c *Controller) watchdogFired(gen uint64) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.watchdogGen {
		return
	}
	c.watchdog = nil
	c.watchdogFiredLocked()
}

func (c *Controller) stopWatchdog() {
	c.watchdogGen++
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.seq++
	c.pending = append(c.pending, stateChange{state: s, seq: c.seq})
}

// unlock releases the lock and then reports the transitions made while
// holding it. Reports are serialised and never go back in sequence.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if c.onStateChange == nil || len(pending) == 0 {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for _, change := range pending {
		if change.seq <= c.notified {
			continue
		}
		c.notified = change.seq
		c.onStateChange(change.state)
	}
}
