package qrlogin

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zenlink-im/zenlink-go/pkg/cookiejar"
	"github.com/zenlink-im/zenlink-go/pkg/httpclient"
	"github.com/zenlink-im/zenlink-go/pkg/session"
)

// State is the login attempt's position in the handshake.
type State string

const (
	StateNew            State = "new"
	StateInitializing   State = "initializing"
	StateWaitingScan    State = "waiting_scan"
	StateWaitingConfirm State = "waiting_confirm"
	StateComplete       State = "complete"
	StateExpired        State = "expired"
	StateAborted        State = "aborted"
	StateError          State = "error"
)

// DefaultQRExpiration is the QR code validity window used when none is
// configured.
const DefaultQRExpiration = 100 * time.Second

// DefaultMaxRedirects bounds the session-check redirect walk.
const DefaultMaxRedirects = 10

// Mailbox messages. Network completions and timer fires carry the epoch they
// were scheduled under; the worker drops any message whose epoch no longer
// matches.
type message interface{}

type startMsg struct{}
type abortMsg struct{}
type retryMsg struct{}

type expireMsg struct {
	epoch int64
}

type initDoneMsg struct {
	epoch   int64
	version string
	qr      qrPayload
	err     *LoginError
}

type scanResultMsg struct {
	epoch   int64
	outcome scanOutcome
}

type confirmResultMsg struct {
	epoch   int64
	outcome confirmOutcome
}

type finalizeDoneMsg struct {
	epoch int64
	sess  *session.Session
	err   *LoginError
}

// flushMsg lets callers wait until every earlier mailbox message has been
// processed. Used by tests.
type flushMsg struct {
	done chan struct{}
}

// Orchestrator drives one QR-code login handshake: it owns the attempt's
// cookie jar, performs the multi-round-trip flow against the service,
// correlates the two asynchronous human actions (scan, confirm) with
// long-polling, enforces the QR expiry window and emits the resulting events
// to the observer.
//
// All attempt state is owned by a single worker goroutine; external commands
// (Abort, Retry) and asynchronous completions are messages to that worker, so
// no step of the same attempt ever runs concurrently with another.
type Orchestrator struct {
	transport      *httpclient.Client
	dispatcher     *eventDispatcher
	baseURL        string
	accountBaseURL string
	continueURL    string
	userAgent      string
	qrExpiration   time.Duration
	maxRedirects   int

	ctx    context.Context
	cancel context.CancelFunc

	attemptID uuid.UUID
	mailbox   chan message
	closed    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// currentState mirrors the worker-owned state for external readers.
	currentState atomic.Value // State

	// Worker-owned fields below; only the run loop touches them.
	state       State
	epoch       int64
	jar         *cookiejar.Jar
	version     string
	qrCode      string
	expiryTimer *time.Timer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBaseURL sets the login host the handshake runs against.
func WithBaseURL(baseURL string) Option {
	return func(o *Orchestrator) {
		o.baseURL = baseURL
	}
}

// WithAccountBaseURL sets the host serving the user-info endpoint.
func WithAccountBaseURL(accountBaseURL string) Option {
	return func(o *Orchestrator) {
		o.accountBaseURL = accountBaseURL
	}
}

// WithContinueURL sets the post-login destination echoed on every step.
func WithContinueURL(continueURL string) Option {
	return func(o *Orchestrator) {
		o.continueURL = continueURL
	}
}

// WithUserAgent sets the user agent the whole attempt is performed under.
func WithUserAgent(userAgent string) Option {
	return func(o *Orchestrator) {
		o.userAgent = userAgent
	}
}

// WithQRExpiration sets the QR code validity window.
func WithQRExpiration(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.qrExpiration = d
	}
}

// WithMaxRedirects sets the session-check redirect bound.
func WithMaxRedirects(n int) Option {
	return func(o *Orchestrator) {
		o.maxRedirects = n
	}
}

// WithTransport sets the HTTP transport used for every step.
func WithTransport(transport *httpclient.Client) Option {
	return func(o *Orchestrator) {
		o.transport = transport
	}
}

// New creates an orchestrator that reports its events to observer. The
// attempt does not start until Start is called.
func New(observer Observer, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		transport:      httpclient.New(),
		dispatcher:     newEventDispatcher(observer),
		baseURL:        "https://id.zenlink.me",
		accountBaseURL: "https://account.zenlink.me",
		continueURL:    "https://chat.zenlink.me/",
		userAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		qrExpiration:   DefaultQRExpiration,
		maxRedirects:   DefaultMaxRedirects,
		ctx:            ctx,
		cancel:         cancel,
		attemptID:      uuid.New(),
		mailbox:        make(chan message, 64),
		closed:         make(chan struct{}),
		state:          StateNew,
	}
	o.currentState.Store(StateNew)

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins the login handshake. Calling Start more than once has no
// effect.
func (o *Orchestrator) Start() {
	o.startOnce.Do(func() {
		go o.run()
		o.post(startMsg{})
	})
}

// Abort cancels the attempt from any non-terminal state. Fire-and-forget: it
// never waits for an outstanding network call, whose eventual response is
// discarded. No events are emitted after an abort.
func (o *Orchestrator) Abort() {
	o.post(abortMsg{})
}

// Retry discards the current attempt's cookies and QR code and restarts the
// handshake from scratch. Fire-and-forget, valid from any state.
func (o *Orchestrator) Retry() {
	o.post(retryMsg{})
}

// Close stops the worker and the event dispatcher. Pending queued events are
// still delivered. The orchestrator cannot be reused afterwards.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closed)
		o.cancel()
		o.dispatcher.close()
	})
}

// State returns the attempt's current state.
func (o *Orchestrator) State() State {
	return o.currentState.Load().(State)
}

// post delivers a message to the worker, dropping it once the orchestrator
// is closed.
func (o *Orchestrator) post(m message) {
	select {
	case o.mailbox <- m:
	case <-o.closed:
	}
}

// flush blocks until the worker has processed every message posted before
// it. Test hook.
func (o *Orchestrator) flush() {
	done := make(chan struct{})
	o.post(flushMsg{done: done})
	select {
	case <-done:
	case <-o.closed:
	}
}

// run is the attempt's single worker. It processes commands, network
// completions and timer fires strictly one at a time.
func (o *Orchestrator) run() {
	defer o.dispatcher.close()

	for {
		var m message
		select {
		case m = <-o.mailbox:
		case <-o.closed:
			o.cancelExpiry()
			return
		}

		switch msg := m.(type) {
		case startMsg:
			o.beginAttempt()
		case abortMsg:
			o.handleAbort()
		case retryMsg:
			o.handleRetry()
		case expireMsg:
			if msg.epoch != o.epoch {
				continue
			}
			o.handleExpire()
		case initDoneMsg:
			if msg.epoch != o.epoch {
				continue
			}
			o.handleInitDone(msg)
		case scanResultMsg:
			if msg.epoch != o.epoch {
				continue
			}
			o.handleScanResult(msg.outcome)
		case confirmResultMsg:
			if msg.epoch != o.epoch {
				continue
			}
			o.handleConfirmResult(msg.outcome)
		case finalizeDoneMsg:
			if msg.epoch != o.epoch {
				continue
			}
			o.handleFinalizeDone(msg)
		case flushMsg:
			close(msg.done)
		}
	}
}

// beginAttempt starts a fresh handshake under a new epoch with a new cookie
// jar.
func (o *Orchestrator) beginAttempt() {
	o.epoch++
	o.jar = cookiejar.New()
	o.version = ""
	o.qrCode = ""
	o.setState(StateInitializing)

	epoch, jar := o.epoch, o.jar
	go func() {
		version, qr, lerr := o.initialize(jar)
		o.post(initDoneMsg{epoch: epoch, version: version, qr: qr, err: lerr})
	}()
}

// initialize performs the four sequential pre-scan steps: landing page,
// login-info, verify-client, qr/generate.
func (o *Orchestrator) initialize(jar *cookiejar.Jar) (string, qrPayload, *LoginError) {
	version, lerr := o.fetchLoginPage(jar)
	if lerr != nil {
		return "", qrPayload{}, lerr
	}
	if lerr := o.postLoginInfo(jar, version); lerr != nil {
		return "", qrPayload{}, lerr
	}
	if lerr := o.postVerifyClient(jar, version); lerr != nil {
		return "", qrPayload{}, lerr
	}
	qr, lerr := o.generateQR(jar, version)
	if lerr != nil {
		return "", qrPayload{}, lerr
	}
	return version, qr, nil
}

func (o *Orchestrator) handleInitDone(m initDoneMsg) {
	if m.err != nil {
		o.fail(m.err)
		return
	}

	o.version = m.version
	o.qrCode = m.qr.Code

	o.dispatcher.emit(Event{
		Type:    EventQRGenerated,
		Code:    m.qr.Code,
		Image:   m.qr.Image,
		Options: m.qr.Options,
	})

	o.armExpiry()
	o.setState(StateWaitingScan)
	o.issueScanPoll()
}

func (o *Orchestrator) handleScanResult(outcome scanOutcome) {
	switch {
	case outcome.err != nil:
		o.fail(outcome.err)
	case outcome.pending:
		o.issueScanPoll()
	default:
		o.dispatcher.emit(Event{
			Type:        EventQRScanned,
			Avatar:      outcome.avatar,
			DisplayName: outcome.displayName,
		})
		o.setState(StateWaitingConfirm)
		o.issueConfirmPoll()
	}
}

func (o *Orchestrator) handleConfirmResult(outcome confirmOutcome) {
	switch {
	case outcome.err != nil:
		o.fail(outcome.err)
	case outcome.pending:
		o.issueConfirmPoll()
	case outcome.declined:
		o.cancelExpiry()
		o.dispatcher.emit(Event{Type: EventQRDeclined, Code: o.qrCode})
		o.setState(StateAborted)
		o.epoch++
	default:
		// Confirmed. The QR code is no longer in play; finalize converts
		// the confirmation into a usable session. The epoch is minted anew
		// so an expiry fire already sitting in the mailbox cannot interrupt
		// the finalize sequence.
		o.cancelExpiry()
		o.epoch++
		epoch, jar := o.epoch, o.jar
		go func() {
			sess, lerr := o.finalizeLogin(jar)
			o.post(finalizeDoneMsg{epoch: epoch, sess: sess, err: lerr})
		}()
	}
}

// finalizeLogin runs the post-confirmation sequence: session-check redirect
// walk, user-info fetch, identity extraction, cookie export.
func (o *Orchestrator) finalizeLogin(jar *cookiejar.Jar) (*session.Session, *LoginError) {
	if lerr := o.checkSession(jar); lerr != nil {
		return nil, lerr
	}
	userInfo, lerr := o.fetchUserInfo(jar)
	if lerr != nil {
		return nil, lerr
	}

	return &session.Session{
		Cookies:   jar.Export(),
		IMEI:      uuid.NewString(),
		UserAgent: o.userAgent,
		UserInfo:  userInfo,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) handleFinalizeDone(m finalizeDoneMsg) {
	if m.err != nil {
		o.fail(m.err)
		return
	}

	o.setState(StateComplete)
	o.epoch++
	o.dispatcher.emit(Event{Type: EventLoginComplete, Session: m.sess})
	slog.Info("login complete", "attemptID", o.attemptID, "uid", m.sess.UserInfo.UID)
}

func (o *Orchestrator) handleExpire() {
	o.expiryTimer = nil
	o.dispatcher.emit(Event{Type: EventQRExpired})
	o.setState(StateExpired)
	// Mint a fresh epoch so a stale poll response arriving after the expiry
	// is dropped.
	o.epoch++
	slog.Info("qr code expired", "attemptID", o.attemptID)
}

func (o *Orchestrator) handleAbort() {
	switch o.state {
	case StateComplete, StateAborted, StateError:
		return
	}
	o.cancelExpiry()
	o.epoch++
	o.setState(StateAborted)
	slog.Info("login attempt aborted", "attemptID", o.attemptID)
}

func (o *Orchestrator) handleRetry() {
	o.cancelExpiry()
	slog.Info("login attempt restarted", "attemptID", o.attemptID)
	o.beginAttempt()
}

// fail terminates the attempt with exactly one login_error event.
func (o *Orchestrator) fail(lerr *LoginError) {
	o.cancelExpiry()
	o.setState(StateError)
	o.epoch++
	o.dispatcher.emit(Event{Type: EventLoginError, Err: lerr})
	slog.Error("login attempt failed", "attemptID", o.attemptID, "kind", lerr.Kind, "error", lerr)
}

func (o *Orchestrator) issueScanPoll() {
	epoch, jar, version, code := o.epoch, o.jar, o.version, o.qrCode
	go func() {
		outcome := o.pollScan(jar, version, code)
		o.post(scanResultMsg{epoch: epoch, outcome: outcome})
	}()
}

func (o *Orchestrator) issueConfirmPoll() {
	epoch, jar, version, code := o.epoch, o.jar, o.version, o.qrCode
	go func() {
		outcome := o.pollConfirm(jar, version, code)
		o.post(confirmResultMsg{epoch: epoch, outcome: outcome})
	}()
}

// armExpiry starts the single QR validity timer for the current epoch.
func (o *Orchestrator) armExpiry() {
	o.cancelExpiry()
	epoch := o.epoch
	o.expiryTimer = time.AfterFunc(o.qrExpiration, func() {
		o.post(expireMsg{epoch: epoch})
	})
}

// cancelExpiry stops the expiry timer if one is armed. A fire that already
// slipped into the mailbox is neutralized by its epoch tag.
func (o *Orchestrator) cancelExpiry() {
	if o.expiryTimer != nil {
		o.expiryTimer.Stop()
		o.expiryTimer = nil
	}
}

func (o *Orchestrator) setState(s State) {
	slog.Debug("login state transition", "attemptID", o.attemptID, "from", o.state, "to", s, "epoch", o.epoch)
	o.state = s
	o.currentState.Store(s)
}
