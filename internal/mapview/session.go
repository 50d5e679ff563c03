package mapview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/filter"
	"github.com/metamapa/mapgateway/internal/incident"
	"github.com/metamapa/mapgateway/internal/marker"
	"github.com/metamapa/mapgateway/internal/metrics"
	"github.com/metamapa/mapgateway/internal/query"
	"github.com/metamapa/mapgateway/internal/viewport"
)

// DefaultFetchTimeout bounds a marker fetch when Options.FetchTimeout is unset.
const DefaultFetchTimeout = 15 * time.Second

// DefaultZoom is the zoom of a new session before the first zoom event.
const DefaultZoom = viewport.MinZoom

// Flags are the feature switches consulted on every fetch.
type Flags interface {
	DiscardStaleResponses(ctx context.Context) bool
	ExplicitMediaFalse(ctx context.Context) bool
}

type defaultFlags struct{}

func (defaultFlags) DiscardStaleResponses(context.Context) bool { return true }
func (defaultFlags) ExplicitMediaFalse(context.Context) bool    { return false }

// Options configure the sessions of a manager.
type Options struct {
	Fetcher      incident.Fetcher
	Icons        *marker.IconSet
	Flags        Flags
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	FetchTimeout time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Icons == nil {
		o.Icons = marker.DefaultIconSet()
	}
	if o.Flags == nil {
		o.Flags = defaultFlags{}
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session is one user's map. All methods are safe for concurrent use.
//
// Fetches run outside the lock. Each fetch takes a generation number; with
// stale discarding on, only the newest generation may replace the marker set
// and older in-flight fetches are canceled. Results that arrive after the view
// dropped below the minimum zoom are always dropped.
type Session struct {
	id     string
	owner  string
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	tracker    *viewport.Tracker
	filters    *filter.Store
	markers    []incident.Marker
	selection  marker.Selection
	media      marker.MediaViewer
	status     Status
	generation uint64
	floor      uint64
	inflight   map[uint64]context.CancelFunc
	lastActive time.Time
	updatedAt  time.Time
}

// NewSession creates a session with no bounds at DefaultZoom.
func NewSession(id, owner string, opts Options) *Session {
	opts = opts.withDefaults()
	now := opts.Now()
	return &Session{
		id:         id,
		owner:      owner,
		opts:       opts,
		logger:     opts.Logger.With().Str("session_id", id).Logger(),
		tracker:    viewport.NewTracker(DefaultZoom),
		filters:    filter.NewStore(),
		status:     idleStatus(),
		inflight:   make(map[uint64]context.CancelFunc),
		lastActive: now,
		updatedAt:  now,
	}
}

// RestoreSession rebuilds a session from a saved view. The marker set starts
// empty until the next fetch.
func RestoreSession(saved SavedView, opts Options) *Session {
	s := NewSession(saved.SessionID, saved.Owner, opts)
	s.tracker = viewport.Restore(saved.Viewport)
	s.filters = filter.RestoreStore(saved.Applied)
	s.updatedAt = saved.UpdatedAt
	if st := saved.Viewport; st.HasBounds && st.Zoom < viewport.MinZoom {
		s.status = minZoomStatus()
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Owner returns the subject that created the session, empty for anonymous sessions.
func (s *Session) Owner() string {
	return s.owner
}

// LastActive returns the time of the last operation on the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// MoveEnd records new bounds and reloads markers when the view is queryable.
func (s *Session) MoveEnd(ctx context.Context, b viewport.Bounds) error {
	s.mu.Lock()
	err := s.tracker.MoveEnd(b)
	if err == nil {
		s.touchLocked(true)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	_ = s.reload(ctx)
	return nil
}

// ZoomEnd records the zoom level. Below viewport.MinZoom the marker set is
// cleared without a network call; otherwise markers are reloaded.
func (s *Session) ZoomEnd(ctx context.Context, zoom int) {
	s.mu.Lock()
	ok := s.tracker.ZoomEnd(zoom)
	s.touchLocked(true)
	if !ok {
		s.enterMinZoomLocked()
		s.mu.Unlock()
		s.opts.Metrics.ObserveFetch(metrics.OutcomeSkipped, 0, 0)
		return
	}
	s.mu.Unlock()

	_ = s.reload(ctx)
}

// Refresh re-runs the current query. The returned error is the fetch error,
// which is also reflected in the status.
func (s *Session) Refresh(ctx context.Context) error {
	s.touch(false)
	return s.reload(ctx)
}

// refreshOnChange re-runs the current query after an incident change. Unlike
// a user refresh it keeps the open popup when its marker is still present,
// and it does not count as activity.
func (s *Session) refreshOnChange(ctx context.Context) error {
	return s.fetch(ctx, true)
}

// SetPendingField edits one pending criteria field.
func (s *Session) SetPendingField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	return s.filters.SetPendingField(name, value)
}

// SetPendingFields edits several pending criteria fields at once.
func (s *Session) SetPendingFields(fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	return s.filters.SetPendingFields(fields)
}

// SetPendingCollection selects a pending collection; the zero value unselects.
func (s *Session) SetPendingCollection(sel filter.CollectionSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	s.filters.SetPendingCollection(sel)
}

// SetPendingMode sets the pending collection display mode.
func (s *Session) SetPendingMode(m filter.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	return s.filters.SetPendingMode(m)
}

// OpenFilters opens the filter panel.
func (s *Session) OpenFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	s.filters.OpenPanel()
}

// Apply commits the pending filters, closes the panel and reloads markers.
func (s *Session) Apply(ctx context.Context) {
	s.mu.Lock()
	s.filters.Apply()
	s.touchLocked(true)
	s.mu.Unlock()

	_ = s.reload(ctx)
}

// Clear resets pending and applied filters and reloads markers.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.filters.Clear()
	s.touchLocked(true)
	s.mu.Unlock()

	_ = s.reload(ctx)
}

// OpenMarker opens the popup of a marker, closing any other.
func (s *Session) OpenMarker(id string) (marker.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)

	m, ok := s.findLocked(id)
	if !ok {
		return marker.Detail{}, ErrMarkerNotFound
	}
	s.selection.Open(id)
	return marker.NewDetail(m, s.opts.Icons, s.opts.Now()), nil
}

// CloseMarker closes the open popup.
func (s *Session) CloseMarker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	s.selection.Close()
}

// OpenMedia opens the media viewer on a marker's media list.
func (s *Session) OpenMedia(markerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)

	m, ok := s.findLocked(markerID)
	if !ok {
		return ErrMarkerNotFound
	}
	return s.media.Open(m.ID, m.MediaURLs)
}

// NextMedia advances the media viewer with wraparound.
func (s *Session) NextMedia() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	s.media.Next()
}

// PrevMedia steps the media viewer back with wraparound.
func (s *Session) PrevMedia() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	s.media.Prev()
}

// CloseMedia closes the media viewer.
func (s *Session) CloseMedia() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(false)
	s.media.Close()
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.tracker.State()
	v := View{
		ID:       s.id,
		Owner:    s.owner,
		Viewport: state,
		CanQuery: state.Queryable(),
		Filters: FilterView{
			Pending:   s.filters.Pending(),
			Applied:   s.filters.Applied(),
			PanelOpen: s.filters.PanelOpen(),
		},
		Pins:      marker.Pins(s.markers, s.opts.Icons),
		Status:    s.status,
		Loading:   len(s.inflight) > 0,
		UpdatedAt: s.updatedAt,
	}

	if id, ok := s.selection.Selected(); ok {
		if m, found := s.findLocked(id); found {
			d := marker.NewDetail(m, s.opts.Icons, s.opts.Now())
			v.Selected = &d
		}
	}
	if s.media.IsOpen() {
		url, _ := s.media.Current()
		v.Media = &MediaView{
			MarkerID: s.media.MarkerID(),
			Index:    s.media.Index(),
			Count:    s.media.Len(),
			URL:      url,
		}
	}
	return v
}

// Pins returns the current map pins.
func (s *Session) Pins() []marker.Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return marker.Pins(s.markers, s.opts.Icons)
}

// Covers reports whether a queryable view of the session contains the point.
func (s *Session) Covers(lat, lon float64) bool {
	state := s.tracker.State()
	return state.Queryable() && state.Bounds.Contains(lat, lon)
}

// HasMarker reports whether the marker set contains id.
func (s *Session) HasMarker(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.findLocked(id)
	return ok
}

// Saved returns the persistable part of the session.
func (s *Session) Saved() SavedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SavedView{
		SessionID: s.id,
		Owner:     s.owner,
		Viewport:  s.tracker.State(),
		Applied:   s.filters.Applied(),
		UpdatedAt: s.updatedAt,
	}
}

// Close cancels in-flight fetches.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelInflightLocked()
}

func (s *Session) reload(ctx context.Context) error {
	s.mu.Lock()
	state := s.tracker.State()
	if !state.Queryable() {
		if state.Zoom < viewport.MinZoom {
			s.enterMinZoomLocked()
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.fetch(ctx, false)
}

// fetch runs the current query and swaps in the result. keepSelection
// restores the open popup when its marker survives the swap.
func (s *Session) fetch(ctx context.Context, keepSelection bool) error {
	discardStale := s.opts.Flags.DiscardStaleResponses(ctx)
	explicitMediaFalse := s.opts.Flags.ExplicitMediaFalse(ctx)

	s.mu.Lock()
	state := s.tracker.State()
	if !state.Queryable() {
		s.mu.Unlock()
		return nil
	}
	payload := query.Build(s.filters.Applied(), state.Bounds, query.Options{ExplicitMediaFalse: explicitMediaFalse})
	if discardStale {
		s.cancelInflightLocked()
	}
	s.generation++
	gen := s.generation
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	s.inflight[gen] = cancel
	s.status = loadingStatus()
	s.mu.Unlock()

	start := time.Now()
	markers, err := s.opts.Fetcher.FetchMarkers(fetchCtx, payload)
	duration := time.Since(start)
	superseded := errors.Is(fetchCtx.Err(), context.Canceled) && ctx.Err() == nil
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, gen)

	stale := gen <= s.floor || (discardStale && gen != s.generation) || (err != nil && superseded)
	if stale || !s.tracker.State().Queryable() {
		s.logger.Debug().Uint64("generation", gen).Msg("discarding superseded marker fetch")
		s.opts.Metrics.ObserveFetch(metrics.OutcomeDiscarded, 0, duration)
		return nil
	}

	if err != nil {
		s.status = errorStatus(errorDetail(err))
		s.logger.Warn().Err(err).Dur("duration", duration).Msg("marker fetch failed")
		s.opts.Metrics.ObserveFetch(metrics.OutcomeError, 0, duration)
		return err
	}

	s.replaceMarkersLocked(markers, keepSelection)
	s.status = resultStatus(len(s.markers))

	outcome := metrics.OutcomeResults
	if len(s.markers) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	s.opts.Metrics.ObserveFetch(outcome, len(s.markers), duration)
	s.logger.Debug().Int("markers", len(s.markers)).Dur("duration", duration).Msg("markers replaced")
	return nil
}

// replaceMarkersLocked swaps the marker set. The popup closes unless
// keepSelection is set and its marker is still present; the media viewer
// survives only if its marker is still present.
func (s *Session) replaceMarkersLocked(markers []incident.Marker, keepSelection bool) {
	next := make([]incident.Marker, 0, len(markers))
	for _, m := range markers {
		m.Normalize()
		next = append(next, m)
	}
	s.markers = next

	if selected, ok := s.selection.Selected(); ok && keepSelection {
		s.selection.Restore(selected, func(id string) bool {
			_, found := s.findLocked(id)
			return found
		})
	} else {
		s.selection.Close()
	}

	if s.media.IsOpen() {
		if _, ok := s.findLocked(s.media.MarkerID()); !ok {
			s.media.Close()
		}
	}
}

func (s *Session) enterMinZoomLocked() {
	s.floor = s.generation
	s.cancelInflightLocked()
	s.markers = nil
	s.selection.Close()
	s.media.Close()
	s.status = minZoomStatus()
}

func (s *Session) cancelInflightLocked() {
	for gen, cancel := range s.inflight {
		cancel()
		delete(s.inflight, gen)
	}
}

func (s *Session) findLocked(id string) (incident.Marker, bool) {
	for _, m := range s.markers {
		if m.ID == id {
			return m, true
		}
	}
	return incident.Marker{}, false
}

func (s *Session) touch(changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(changed)
}

// touchLocked marks activity; changed also marks the saved view dirty.
func (s *Session) touchLocked(changed bool) {
	now := s.opts.Now()
	s.lastActive = now
	if changed {
		s.updatedAt = now
	}
}

func errorDetail(err error) string {
	var fe *incident.FetchError
	if errors.As(err, &fe) {
		return fe.Detail()
	}
	return err.Error()
}
