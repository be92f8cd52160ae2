// Package tracker follows a single payment reference until it settles. It
// listens on a push feed and polls the status source at the same time, and it
// funnels both into one merge rule.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/internal/statusfeed"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
	"github.com/angelmondragon/paytrack/pkg/logger"
	"github.com/angelmondragon/paytrack/pkg/metrics"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultPendingTimeout = 5 * time.Minute

	msgNotFound      = "Payment not found"
	msgFetchFailed   = "Failed to fetch payment status"
	msgStillPending  = "payment still pending"
	channelFetch     = "fetch"
	channelPush      = "push"
	channelPoll      = "poll"
	channelRefresh   = "refresh"
	outcomeStopped   = "stopped"
	outcomeReplaced  = "replaced"
	outcomeTimeout   = "timeout"
	outcomeAbandoned = "owner_cancelled"
	outcomeClosed    = "closed"
)

// Phase is the tracker's position in the tracking lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFetching Phase = "fetching"
	PhasePending  Phase = "pending"
	PhaseTerminal Phase = "terminal"
)

// Source performs point lookups of a payment's current status.
type Source interface {
	Get(ctx context.Context, reference string) (payments.Status, error)
}

// Feed opens a push subscription for one reference.
type Feed interface {
	Subscribe(ctx context.Context, reference string, onUpdate statusfeed.Handler) (statusfeed.Subscription, error)
}

// Params wires a Tracker.
type Params struct {
	Source         Source
	Feed           Feed
	Notifier       Notifier
	Policy         Policy
	Logger         *logger.Logger
	Metrics        *metrics.TrackerMetrics
	PollInterval   time.Duration
	PendingTimeout time.Duration
	Now            func() time.Time
}

// Tracker owns at most one tracking session at a time. All methods are safe
// for concurrent use.
type Tracker struct {
	source         Source
	feed           Feed
	notifier       Notifier
	policy         Policy
	logg           *logger.Logger
	metrics        *metrics.TrackerMetrics
	pollInterval   time.Duration
	pendingTimeout time.Duration
	now            func() time.Time

	mu        sync.Mutex
	session   *session
	phase     Phase
	reference string
	status    *payments.Status
	loading   bool
	err       error
	closed    bool
}

// New validates dependencies and builds an idle Tracker. Feed may be nil, in
// which case sessions rely on polling alone.
func New(params Params) (*Tracker, error) {
	if params.Source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "status source required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Message) {})
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	pollInterval := params.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pendingTimeout := params.PendingTimeout
	if pendingTimeout <= 0 {
		pendingTimeout = defaultPendingTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		source:         params.Source,
		feed:           params.Feed,
		notifier:       notifier,
		policy:         params.Policy,
		logg:           logg,
		metrics:        params.Metrics,
		pollInterval:   pollInterval,
		pendingTimeout: pendingTimeout,
		now:            now,
		phase:          PhaseIdle,
	}, nil
}

// effect is what a state change asks for once the lock is released.
type effect struct {
	release *session
	outcome string
	notify  *Message
}

func (t *Tracker) apply(ctx context.Context, eff effect) {
	if eff.release != nil {
		if err := eff.release.release(); err != nil {
			t.logg.Error(ctx, "failed to release push subscription", err)
		}
		if eff.outcome != "" && !eff.release.pendingSince.IsZero() {
			t.metrics.ObserveFinished(eff.outcome, t.now().Sub(eff.release.pendingSince))
		}
	}
	if eff.notify != nil {
		t.notifier.Notify(ctx, *eff.notify)
	}
}

// detachLocked ends the current session's ownership without releasing it.
func (t *Tracker) detachLocked(outcome string) effect {
	sess := t.session
	if sess == nil {
		return effect{}
	}
	t.session = nil
	t.loading = false
	if t.phase != PhaseTerminal {
		t.phase = PhaseIdle
	}
	return effect{release: sess, outcome: outcome}
}

// StartTracking looks the reference up once and, while it is pending, keeps
// following it on the push and poll channels until it settles, times out, is
// stopped, or ctx ends. Tracking a reference that is already active is a
// no-op. Starting a different reference tears the current session down first.
// Only the initial lookup blocks; its failure is returned and also kept in Err.
func (t *Tracker) StartTracking(ctx context.Context, reference string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reference = payments.NormalizeReference(reference)
	if reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeInternal, "tracker closed")
	}
	if t.session != nil && t.session.reference == reference {
		t.mu.Unlock()
		return nil
	}
	prev := t.detachLocked(outcomeReplaced)
	sess := newSession(t.logg.WithReference(ctx, reference), reference)
	t.session = sess
	t.reference = reference
	t.phase = PhaseFetching
	t.status = nil
	t.err = nil
	t.loading = true
	t.mu.Unlock()
	t.apply(ctx, prev)

	t.logg.Info(sess.ctx, "payment tracking started")
	snapshot, err := t.source.Get(sess.ctx, reference)

	t.mu.Lock()
	if t.session != sess {
		t.mu.Unlock()
		sess.release()
		return nil
	}
	if err != nil {
		surfaced := fetchError(reference, err)
		t.err = surfaced
		t.session = nil
		t.loading = false
		t.phase = PhaseIdle
		t.mu.Unlock()
		sess.release()
		t.metrics.IncObservation(channelFetch, "error")
		t.logg.Error(sess.ctx, "initial payment status lookup failed", err)
		return surfaced
	}
	if !snapshot.Status.IsValid() {
		surfaced := pkgerrors.New(pkgerrors.CodeDependency, msgFetchFailed).WithDetails(map[string]any{
			"reference": reference,
			"status":    snapshot.Status,
		})
		t.err = surfaced
		t.session = nil
		t.loading = false
		t.phase = PhaseIdle
		t.mu.Unlock()
		sess.release()
		t.metrics.IncObservation(channelFetch, "invalid")
		t.logg.Warn(sess.ctx, "initial lookup returned an unknown status")
		return surfaced
	}

	// First observation of the session: state sync only.
	msg, notify := t.policy.OnTransition(nil, snapshot.Status, snapshot.Amount, snapshot.Currency)
	observed := snapshot
	sess.last = &observed
	t.status = &observed
	t.loading = false
	t.metrics.IncObservation(channelFetch, resultTransition)

	if snapshot.Status.IsTerminal() {
		t.phase = PhaseTerminal
		t.session = nil
		t.mu.Unlock()
		sess.release()
		eff := effect{}
		if notify {
			msg.Reference = reference
			eff.notify = &msg
		}
		t.apply(context.WithoutCancel(sess.ctx), eff)
		t.logg.Info(t.logg.WithField(sess.ctx, "status", snapshot.Status), "payment already settled")
		return nil
	}

	t.phase = PhasePending
	sess.pendingSince = t.now()
	t.mu.Unlock()

	t.metrics.IncStarted()
	if notify {
		msg.Reference = reference
		t.notifier.Notify(sess.ctx, msg)
	}
	t.openChannels(sess)
	return nil
}

func fetchError(reference string, err error) error {
	details := map[string]any{"reference": reference}
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msgNotFound).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgFetchFailed).WithDetails(details)
}

// openChannels starts the push subscription and the poll loop side by side.
func (t *Tracker) openChannels(sess *session) {
	if t.feed != nil {
		go t.subscribe(sess)
	}
	go t.pollLoop(sess)
}

func (t *Tracker) subscribe(sess *session) {
	sub, err := t.feed.Subscribe(sess.ctx, sess.reference, func(snapshot payments.Status) {
		t.observe(sess, channelPush, snapshot)
	})
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		t.logg.Error(sess.ctx, "push channel unavailable; tracking continues on polling", err)
		return
	}
	if !sess.attach(sub) {
		if err := sub.Unsubscribe(); err != nil {
			t.logg.Error(sess.ctx, "failed to release push subscription", err)
		}
		return
	}
	t.logg.Debug(sess.ctx, "push channel open")
}

func (t *Tracker) pollLoop(sess *session) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(t.pendingTimeout - t.now().Sub(sess.pendingSince))
	defer deadline.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			t.abandon(sess)
			return
		case <-deadline.C:
			t.expire(sess)
			return
		case <-ticker.C:
			t.poll(sess)
			if t.overdue(sess) {
				t.expire(sess)
				return
			}
		}
	}
}

func (t *Tracker) poll(sess *session) {
	if !t.owns(sess) {
		return
	}
	snapshot, err := t.source.Get(sess.ctx, sess.reference)
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		t.metrics.IncPollFailure()
		t.logg.Error(sess.ctx, "payment status poll failed; retrying on next tick", err)
		return
	}
	t.observe(sess, channelPoll, snapshot)
}

func (t *Tracker) owns(sess *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session == sess
}

func (t *Tracker) overdue(sess *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session == sess && t.now().Sub(sess.pendingSince) >= t.pendingTimeout
}

// observe is the single entry point for snapshots from every channel.
func (t *Tracker) observe(sess *session, channel string, snapshot payments.Status) {
	t.mu.Lock()
	if snapshot.Reference != "" && snapshot.Reference != sess.reference {
		t.mu.Unlock()
		t.metrics.IncObservation(channel, resultIgnored)
		return
	}
	if t.session != sess || sess.last == nil {
		last := sess.last
		t.mu.Unlock()
		if last != nil && merge(last.Status, snapshot.Status) == mergeAnomaly {
			t.reportAnomaly(sess, channel, last.Status, snapshot.Status)
			return
		}
		t.metrics.IncObservation(channel, resultStale)
		return
	}

	prev := sess.last.Status
	switch merge(prev, snapshot.Status) {
	case mergeIgnore:
		t.mu.Unlock()
		t.metrics.IncObservation(channel, resultIgnored)
		return
	case mergeAnomaly:
		t.mu.Unlock()
		t.reportAnomaly(sess, channel, prev, snapshot.Status)
		return
	}

	observed := snapshot
	sess.last = &observed
	t.status = &observed
	eff := effect{}
	if msg, ok := t.policy.OnTransition(&prev, snapshot.Status, snapshot.Amount, snapshot.Currency); ok {
		msg.Reference = sess.reference
		eff.notify = &msg
	}
	if snapshot.Status.IsTerminal() {
		t.phase = PhaseTerminal
		t.session = nil
		eff.release = sess
		eff.outcome = snapshot.Status.String()
	}
	t.mu.Unlock()

	t.metrics.IncObservation(channel, resultTransition)
	logCtx := t.logg.WithFields(sess.ctx, map[string]any{
		"channel": channel,
		"from":    prev,
		"to":      snapshot.Status,
	})
	t.logg.Info(logCtx, "payment status changed")
	t.apply(context.WithoutCancel(sess.ctx), eff)
}

func (t *Tracker) reportAnomaly(sess *session, channel string, known, reported enums.PaymentStatus) {
	t.metrics.IncObservation(channel, resultAnomaly)
	t.metrics.IncAnomaly()
	err := pkgerrors.New(pkgerrors.CodeAnomaly, "settled payment reported with a different status").WithDetails(map[string]any{
		"reference": sess.reference,
		"known":     known,
		"reported":  reported,
	})
	logCtx := t.logg.WithField(sess.ctx, "channel", channel)
	t.logg.Error(logCtx, "ignoring conflicting payment status", err)
}

// expire ends a session that is still pending at its deadline. It surfaces the
// timeout once; later callbacks for the session are stale.
func (t *Tracker) expire(sess *session) {
	t.mu.Lock()
	if t.session != sess {
		t.mu.Unlock()
		return
	}
	elapsed := t.now().Sub(sess.pendingSince)
	t.err = pkgerrors.New(pkgerrors.CodePendingTimeout, msgStillPending).WithDetails(map[string]any{
		"reference":  sess.reference,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	eff := t.detachLocked(outcomeTimeout)
	msg := t.policy.OnTimeout(sess.last.Amount, sess.last.Currency)
	msg.Reference = sess.reference
	eff.notify = &msg
	t.mu.Unlock()

	t.logg.Warn(t.logg.WithField(sess.ctx, "elapsed_ms", elapsed.Milliseconds()), "payment still pending; tracking timed out")
	t.apply(context.WithoutCancel(sess.ctx), eff)
}

// abandon tears down a session whose owner context ended.
func (t *Tracker) abandon(sess *session) {
	t.mu.Lock()
	if t.session != sess {
		t.mu.Unlock()
		return
	}
	eff := t.detachLocked(outcomeAbandoned)
	t.mu.Unlock()
	t.logg.Info(context.WithoutCancel(sess.ctx), "payment tracking owner gone; releasing channels")
	t.apply(context.WithoutCancel(sess.ctx), eff)
}

// StopTracking releases the active session, if any. It is safe to call at any
// time and any number of times.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	eff := t.detachLocked(outcomeStopped)
	t.mu.Unlock()
	if eff.release != nil {
		t.logg.Info(context.WithoutCancel(eff.release.ctx), "payment tracking stopped")
	}
	t.apply(context.Background(), eff)
}

// Refresh forces one lookup for the pending session and feeds it to the merge
// rule. It does nothing when no session is pending.
func (t *Tracker) Refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	sess := t.session
	if sess == nil || t.phase != PhasePending {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	snapshot, err := t.source.Get(ctx, sess.reference)
	if err != nil {
		t.metrics.IncObservation(channelRefresh, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgFetchFailed).WithDetails(map[string]any{
			"reference": sess.reference,
		})
	}
	t.observe(sess, channelRefresh, snapshot)
	return nil
}

// Close stops tracking and rejects further sessions.
func (t *Tracker) Close() error {
	t.mu.Lock()
	t.closed = true
	eff := t.detachLocked(outcomeClosed)
	t.mu.Unlock()
	t.apply(context.Background(), eff)
	return nil
}

// Status returns the last observed snapshot for the current reference.
func (t *Tracker) Status() (payments.Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == nil {
		return payments.Status{}, false
	}
	return *t.status, true
}

// Loading reports whether the initial lookup is in flight.
func (t *Tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// Err returns the last surfaced error: a failed initial lookup or a pending timeout.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Reference is the reference of the most recent StartTracking call.
func (t *Tracker) Reference() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reference
}
