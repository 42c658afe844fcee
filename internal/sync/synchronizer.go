package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/shipdesk-notify/internal/backend"
	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/realtime"
	"github.com/nhle/shipdesk-notify/internal/store"
)

// State is the lifecycle state of a synchronizer session.
type State int

const (
	StateUnauthenticated State = iota
	StateInitializing
	StateLive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLive:
		return "live"
	case StateTornDown:
		return "torn down"
	default:
		return "unauthenticated"
	}
}

// ErrNotStarted is returned by actions invoked without an active session.
var ErrNotStarted = errors.New("notification sync not started")

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Backend is the REST surface the synchronizer needs.
type Backend interface {
	ListMine(ctx context.Context) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	Send(ctx context.Context, req model.SendRequest) (*model.SendResult, error)
}

// Transport is the realtime surface the synchronizer needs.
type Transport interface {
	Acquire(userID string) (release func())
	On(event string, h realtime.Handler) realtime.Subscription
	Off(sub realtime.Subscription)
	Emit(event string, payload interface{}) error
	IsConnected() bool
}

// Notifier surfaces a newly pushed notification outside the app.
type Notifier interface {
	Notify(n model.Notification)
}

// Snapshot is a consistent copy of the synchronizer's state. It doubles as
// the tea.Msg delivered by WaitForUpdate.
type Snapshot struct {
	State         State
	UserID        string
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	Connected     bool
	LastSync      time.Time
	Err           error
}

// pushRecord remembers a pushed insert so a list fetch that was already in
// flight when it arrived does not drop it.
type pushRecord struct {
	seq uint64
	n   model.Notification
}

// Synchronizer owns the notification list and unread counter for one
// signed-in user, merging REST fetches, pushed events and local actions.
type Synchronizer struct {
	backend         Backend
	transport       Transport
	cache           store.Store
	notifier        Notifier
	logger          *zap.Logger
	refreshInterval time.Duration

	mu            gosync.Mutex
	state         State
	userID        string
	session       uint64
	cancel        context.CancelFunc
	release       func()
	subs          []realtime.Subscription
	notifications []model.Notification
	unreadCount   int
	loading       bool
	listLoaded    bool
	lastSync      time.Time
	lastErr       error

	// seq orders fetches and local mutations; listSeq and countSeq are the
	// sequence numbers of the last committed response per field.
	seq      uint64
	listSeq  uint64
	countSeq uint64
	pushed   []pushRecord
	readAt   map[string]uint64
	// pendingReads holds ids whose mark-as-read request has not resolved.
	// Their read overlay survives every merge until it does.
	pendingReads map[string]bool

	updates   chan Snapshot
	triggerCh chan struct{}
	wg        gosync.WaitGroup
}

// Option customises a Synchronizer.
type Option func(*Synchronizer)

// WithCache seeds sessions from, and writes through to, a local store.
func WithCache(s store.Store) Option {
	return func(sy *Synchronizer) { sy.cache = s }
}

// WithNotifier shows OS notifications for pushed items.
func WithNotifier(n Notifier) Option {
	return func(sy *Synchronizer) { sy.notifier = n }
}

// WithRefreshInterval sets the REST polling interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(sy *Synchronizer) { sy.refreshInterval = d }
}

// New creates a Synchronizer in the Unauthenticated state.
func New(b Backend, t Transport, logger *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend:         b,
		transport:       t,
		logger:          logger,
		refreshInterval: 60 * time.Second,
		readAt:          make(map[string]uint64),
		pendingReads:    make(map[string]bool),
		updates:         make(chan Snapshot, 1),
		triggerCh:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a session for userID: it subscribes to pushed events,
// acquires the shared socket, seeds from the cache and begins fetching.
// Starting for the already active user is a no-op; a different user
// tears the previous session down first.
func (s *Synchronizer) Start(userID string) error {
	if userID == "" {
		return fmt.Errorf("starting notification sync: empty user id")
	}

	s.mu.Lock()
	if s.activeLocked() && s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.session++
	session := s.session
	s.state = StateInitializing
	s.userID = userID
	s.cancel = cancel
	s.notifications = nil
	s.unreadCount = 0
	s.loading = true
	s.listLoaded = false
	s.listSeq, s.countSeq = 0, 0
	s.pushed = nil
	s.readAt = make(map[string]uint64)
	s.pendingReads = make(map[string]bool)
	s.lastErr = nil
	s.mu.Unlock()

	subs := []realtime.Subscription{
		s.transport.On(realtime.EventNotificationNew, s.guard(session, s.handleNew)),
		s.transport.On(realtime.EventNotificationRead, s.guard(session, s.handleRead)),
	}

	s.mu.Lock()
	s.subs = subs
	s.mu.Unlock()

	release := s.transport.Acquire(userID)

	s.mu.Lock()
	s.release = release
	s.mu.Unlock()

	s.seedFromCache(ctx, session, userID)
	s.publish()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.fetchCount(ctx, session)
	}()
	go s.refreshLoop(ctx, session)

	return nil
}

// Stop ends the session: every handler registered by Start is removed,
// the socket hold is released and in-flight fetches are cancelled.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return
	}

	s.session++
	s.cancel()
	s.cancel = nil
	subs := s.subs
	s.subs = nil
	release := s.release
	s.release = nil
	s.state = StateTornDown
	s.userID = ""
	s.notifications = nil
	s.unreadCount = 0
	s.loading = false
	s.pushed = nil
	s.mu.Unlock()

	for _, sub := range subs {
		s.transport.Off(sub)
	}
	if release != nil {
		release()
	}

	s.wg.Wait()
	s.publish()
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:         s.state,
		UserID:        s.userID,
		Notifications: append([]model.Notification(nil), s.notifications...),
		UnreadCount:   s.unreadCount,
		Loading:       s.loading,
		LastSync:      s.lastSync,
		Err:           s.lastErr,
	}
	s.mu.Unlock()

	snap.Connected = snap.State != StateUnauthenticated &&
		snap.State != StateTornDown &&
		s.transport.IsConnected()
	return snap
}

// Updates delivers the latest snapshot after every state change. Only the
// most recent undelivered snapshot is kept.
func (s *Synchronizer) Updates() <-chan Snapshot {
	return s.updates
}

// WaitForUpdate returns a tea.Cmd that waits for the next snapshot. Call it
// again after handling each Snapshot to keep listening.
func (s *Synchronizer) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-s.updates
		if !ok {
			return nil
		}
		return snap
	}
}

// RequestRefresh asks the refresh loop for an immediate list fetch.
func (s *Synchronizer) RequestRefresh() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// Refresh refetches the full list and recomputes the unread counter.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	active := s.activeLocked()
	s.mu.Unlock()

	if !active {
		return ErrNotStarted
	}
	return s.fetchList(ctx, session)
}

// RefreshCount refetches only the backend's unread counter.
func (s *Synchronizer) RefreshCount(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	active := s.activeLocked()
	s.mu.Unlock()

	if !active {
		return ErrNotStarted
	}
	return s.fetchCount(ctx, session)
}

// MarkAsRead flips the entry to read and decrements the counter before the
// backend call, restoring both if the call fails. Marking an entry that is
// already read is a no-op.
func (s *Synchronizer) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return ErrNotStarted
	}

	session, userID := s.session, s.userID
	changed := false
	if idx := s.indexLocked(id); idx >= 0 {
		if s.notifications[idx].IsRead {
			s.mu.Unlock()
			return nil
		}
		s.notifications[idx].IsRead = true
		s.decrementLocked()
		s.readAt[id] = s.seq
		s.pendingReads[id] = true
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.publish()
	}

	if err := s.backend.MarkRead(ctx, id); err != nil {
		if changed {
			s.rollbackRead(session, id)
		}
		s.logger.Warn("mark as read failed",
			zap.String("notification_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}

	if changed {
		s.confirmRead(session, id)
	}
	s.cacheMarkRead(ctx, userID, id)

	if err := s.transport.Emit(realtime.EventMarkRead, realtime.MarkReadPayload{NotificationID: id}); err != nil {
		s.logger.Debug("read event not emitted", zap.String("notification_id", id), zap.Error(err))
	}
	return nil
}

// SendNotification creates a notification on the backend and fans it out
// over the socket. A push-emission failure on the backend is reported as a
// soft success and the client emits the event itself.
func (s *Synchronizer) SendNotification(ctx context.Context, draft model.Draft) (*model.SendResult, error) {
	s.mu.Lock()
	active := s.activeLocked()
	s.mu.Unlock()
	if !active {
		return nil, ErrNotStarted
	}

	req, err := draft.Request()
	if err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}

	result, err := s.backend.Send(ctx, req)
	if err != nil {
		if !backend.IsEmitFailure(err) {
			return nil, err
		}
		s.logger.Warn("backend failed to emit notification, treating send as soft success",
			zap.String("scope", string(req.Type)),
			zap.Error(err),
		)
		result = model.SoftSuccess()
	}

	if err := s.transport.Emit(realtime.EventSend, req); err != nil {
		s.logger.Debug("send event not emitted", zap.Error(err))
	}

	return result, nil
}

// guard drops events delivered to handlers of an ended session.
func (s *Synchronizer) guard(session uint64, h func(json.RawMessage)) realtime.Handler {
	return func(data json.RawMessage) {
		s.mu.Lock()
		current := s.session == session && s.activeLocked()
		s.mu.Unlock()

		if current {
			h(data)
		}
	}
}

// handleNew prepends a pushed notification, or updates it in place when
// the id is already listed.
func (s *Synchronizer) handleNew(data json.RawMessage) {
	var n model.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		s.logger.Warn("dropping malformed notification event", zap.Error(err))
		return
	}
	if n.ID == "" {
		n.ID = "local-" + uuid.NewString()
	}

	s.mu.Lock()
	userID := s.userID
	isNew := false
	if idx := s.indexLocked(n.ID); idx >= 0 {
		existing := s.notifications[idx]
		n.IsRead = n.IsRead || existing.IsRead
		if !existing.IsRead && n.IsRead {
			s.decrementLocked()
		}
		s.notifications[idx] = n
	} else {
		s.notifications = append([]model.Notification{n}, s.notifications...)
		if !n.IsRead {
			s.unreadCount++
		}
		s.pushed = append(s.pushed, pushRecord{seq: s.seq, n: n})
		isNew = true
	}
	s.mu.Unlock()

	s.publish()

	if isNew && s.notifier != nil {
		s.notifier.Notify(n)
	}
	if s.cache != nil {
		if err := s.cache.UpsertNotification(context.Background(), userID, n); err != nil {
			s.logger.Warn("caching pushed notification failed", zap.Error(err))
		}
	}
}

// handleRead applies a read status change made on another client.
func (s *Synchronizer) handleRead(data json.RawMessage) {
	var upd model.ReadUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		s.logger.Warn("dropping malformed read event", zap.Error(err))
		return
	}

	s.mu.Lock()
	userID := s.userID
	idx := s.indexLocked(upd.NotificationID)
	if idx < 0 || !upd.ReadStatus || s.notifications[idx].IsRead {
		s.mu.Unlock()
		return
	}
	s.notifications[idx].IsRead = true
	s.decrementLocked()
	s.readAt[upd.NotificationID] = s.seq
	s.mu.Unlock()

	s.publish()
	s.cacheMarkRead(context.Background(), userID, upd.NotificationID)
}

// confirmRead unpins the read overlay for id once the backend accepted it.
// The overlay is restamped so list fetches issued before now, which may not
// reflect the read yet, still keep it.
func (s *Synchronizer) confirmRead(session uint64, id string) {
	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return
	}
	delete(s.pendingReads, id)
	s.readAt[id] = s.seq

	changed := false
	if idx := s.indexLocked(id); idx >= 0 && !s.notifications[idx].IsRead {
		s.notifications[idx].IsRead = true
		s.decrementLocked()
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// rollbackRead restores an optimistic read after the backend rejected it.
func (s *Synchronizer) rollbackRead(session uint64, id string) {
	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return
	}
	delete(s.pendingReads, id)
	delete(s.readAt, id)
	idx := s.indexLocked(id)
	if idx < 0 || !s.notifications[idx].IsRead {
		s.mu.Unlock()
		return
	}
	s.notifications[idx].IsRead = false
	s.unreadCount++
	s.mu.Unlock()

	s.publish()
}

// refreshLoop runs the initial list fetch, then refetches on every tick
// and on RequestRefresh until ctx is cancelled.
func (s *Synchronizer) refreshLoop(ctx context.Context, session uint64) {
	defer s.wg.Done()

	interval := s.refreshInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.fetchList(ctx, session)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetchList(ctx, session)
		case <-s.triggerCh:
			s.fetchList(ctx, session)
		}
	}
}

// nextSeqLocked reserves a sequence number for a fetch.
func (s *Synchronizer) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

// fetchList fetches the full list and, unless a newer list response or a
// new session has committed meanwhile, replaces local state with it.
func (s *Synchronizer) fetchList(ctx context.Context, session uint64) error {
	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return nil
	}
	seq := s.nextSeqLocked()
	userID := s.userID
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	list, err := s.backend.ListMine(fctx)

	s.mu.Lock()
	if s.session != session || seq <= s.listSeq {
		s.mu.Unlock()
		return nil
	}

	if err != nil {
		s.lastErr = err
		s.loading = false
		s.state = StateLive
		s.mu.Unlock()

		s.logger.Warn("fetching notifications failed", zap.Error(err))
		s.publish()
		return err
	}

	merged := s.mergeLocked(seq, list)
	s.notifications = merged
	s.unreadCount = model.CountUnread(merged)
	s.listSeq = seq
	s.listLoaded = true
	s.loading = false
	s.state = StateLive
	s.lastSync = time.Now()
	s.lastErr = nil
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceNotifications(ctx, userID, merged); err != nil {
			s.logger.Warn("caching notifications failed", zap.Error(err))
		}
	}
	s.publish()
	return nil
}

// mergeLocked deduplicates a fetched list and reapplies pushes and reads
// that happened after the fetch with sequence seq was issued, plus reads
// still awaiting the backend.
func (s *Synchronizer) mergeLocked(seq uint64, list []model.Notification) []model.Notification {
	seen := make(map[string]bool, len(list))
	merged := make([]model.Notification, 0, len(list))

	var kept []pushRecord
	for _, p := range s.pushed {
		if p.seq < seq {
			continue
		}
		kept = append(kept, p)
	}
	s.pushed = kept

	for i := len(kept) - 1; i >= 0; i-- {
		n := kept[i].n
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
	}

	for _, n := range list {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
	}

	for id, at := range s.readAt {
		if at < seq && !s.pendingReads[id] {
			delete(s.readAt, id)
			continue
		}
		for i := range merged {
			if merged[i].ID == id {
				merged[i].IsRead = true
			}
		}
	}

	return merged
}

// fetchCount fetches the backend counter. Once a list has been loaded the
// list is authoritative: the response is only compared against it.
func (s *Synchronizer) fetchCount(ctx context.Context, session uint64) error {
	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return nil
	}
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	count, err := s.backend.UnreadCount(fctx)

	s.mu.Lock()
	if s.session != session || seq <= s.countSeq {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("fetching unread count failed", zap.Error(err))
		return err
	}

	s.countSeq = seq
	if s.listLoaded {
		derived := model.CountUnread(s.notifications)
		s.mu.Unlock()
		if count != derived {
			s.logger.Info("unread count diverges from list, keeping list value",
				zap.Int("backend", count),
				zap.Int("list", derived),
			)
		}
		return nil
	}

	s.unreadCount = count
	s.mu.Unlock()

	s.publish()
	return nil
}

// seedFromCache shows the last synced list while the first fetch is in
// flight.
func (s *Synchronizer) seedFromCache(ctx context.Context, session uint64, userID string) {
	if s.cache == nil {
		return
	}

	cached, err := s.cache.GetNotifications(ctx, userID)
	if err != nil {
		s.logger.Warn("reading notification cache failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != session || s.listLoaded {
		return
	}
	s.notifications = cached
	s.unreadCount = model.CountUnread(cached)
}

func (s *Synchronizer) cacheMarkRead(ctx context.Context, userID, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkNotificationRead(ctx, userID, id, true); err != nil {
		s.logger.Warn("caching read status failed",
			zap.String("notification_id", id),
			zap.Error(err),
		)
	}
}

// publish sends the current snapshot without blocking, replacing any
// snapshot the consumer has not picked up yet.
func (s *Synchronizer) publish() {
	snap := s.Snapshot()

	select {
	case s.updates <- snap:
		return
	default:
	}

	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}

func (s *Synchronizer) activeLocked() bool {
	return s.state == StateInitializing || s.state == StateLive
}

func (s *Synchronizer) indexLocked(id string) int {
	for i, n := range s.notifications {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// decrementLocked lowers the unread counter, never below zero.
func (s *Synchronizer) decrementLocked() {
	if s.unreadCount > 0 {
		s.unreadCount--
	}
}
