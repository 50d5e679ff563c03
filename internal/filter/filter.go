// Package filter holds the pending and applied incident filters of a map view.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownField is returned by SetPendingField for names that are not criteria fields.
var ErrUnknownField = errors.New("unknown filter field")

// ErrInvalidMode is returned for display modes other than curated and unrestricted.
var ErrInvalidMode = errors.New("invalid collection mode")

// Mode selects which incidents of a collection are shown.
type Mode string

const (
	// ModeCurated shows only incidents that reached consensus.
	ModeCurated Mode = "CURADA"
	// ModeUnrestricted shows every incident in the collection.
	ModeUnrestricted Mode = "IRRESTRICTA"
)

// DefaultMode is the mode used when no mode was chosen.
const DefaultMode = ModeUnrestricted

// ParseMode accepts the wire values and their English aliases, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CURADA", "CURATED":
		return ModeCurated, nil
	case "IRRESTRICTA", "UNRESTRICTED":
		return ModeUnrestricted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// DateRange is an inclusive day range; values are YYYY-MM-DD strings as entered.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Criteria are the incident filters. Empty strings mean "no constraint".
type Criteria struct {
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	HasMedia     string    `json:"hasMedia,omitempty"`
	EventDate    DateRange `json:"eventDate"`
	UploadDate   DateRange `json:"uploadDate"`
	DesiredState string    `json:"desiredState,omitempty"`
}

// IsEmpty reports whether no constraint is set.
func (c Criteria) IsEmpty() bool {
	return c == Criteria{}
}

// CollectionSelection references a collection picked in the filter panel.
// The zero value means no collection.
type CollectionSelection struct {
	Handle      string `json:"handle,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Selected reports whether a collection is set.
func (c CollectionSelection) Selected() bool {
	return c.Handle != ""
}

// State is everything the filter panel edits.
type State struct {
	Criteria   Criteria            `json:"criteria"`
	Collection CollectionSelection `json:"collection"`
	Mode       Mode                `json:"mode"`
}

// DefaultState is the state after Clear.
func DefaultState() State {
	return State{Mode: DefaultMode}
}

// Store holds pending (being edited) and applied (last confirmed) filter state.
// It is not safe for concurrent use; the owning map session serializes access.
type Store struct {
	state     *Draft[State]
	panelOpen bool
}

// NewStore creates a store with default state on both sides.
func NewStore() *Store {
	return &Store{state: NewDraft(DefaultState())}
}

// RestoreStore creates a store whose pending and applied states both equal s.
func RestoreStore(s State) *Store {
	if s.Mode == "" {
		s.Mode = DefaultMode
	}
	return &Store{state: NewDraft(s)}
}

// SetPendingField sets a pending criteria field by name. Nested fields use a
// dotted path ("eventDate.from"); only one level of nesting exists.
func (s *Store) SetPendingField(name, value string) error {
	head, tail, nested := strings.Cut(name, ".")

	var err error
	s.state.Edit(func(st *State) {
		c := &st.Criteria
		if nested {
			var r *DateRange
			switch head {
			case "eventDate":
				r = &c.EventDate
			case "uploadDate":
				r = &c.UploadDate
			default:
				err = fmt.Errorf("%w: %q", ErrUnknownField, name)
				return
			}
			switch tail {
			case "from":
				r.From = value
			case "to":
				r.To = value
			default:
				err = fmt.Errorf("%w: %q", ErrUnknownField, name)
			}
			return
		}

		switch head {
		case "title":
			c.Title = value
		case "description":
			c.Description = value
		case "category":
			c.Category = value
		case "hasMedia":
			c.HasMedia = value
		case "desiredState":
			c.DesiredState = value
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	})
	return err
}

// Fields lists every name accepted by SetPendingField.
var Fields = []string{
	"title",
	"description",
	"category",
	"hasMedia",
	"desiredState",
	"eventDate.from",
	"eventDate.to",
	"uploadDate.from",
	"uploadDate.to",
}

// KnownField reports whether name is accepted by SetPendingField.
func KnownField(name string) bool {
	return slices.Contains(Fields, name)
}

// SetPendingFields sets several pending fields in name order. Nothing is set
// when any name is unknown.
func (s *Store) SetPendingFields(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !KnownField(name) {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := s.SetPendingField(name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// SetPendingCollection selects a collection; the zero value unselects.
func (s *Store) SetPendingCollection(sel CollectionSelection) {
	s.state.Edit(func(st *State) { st.Collection = sel })
}

// SetPendingMode sets the pending collection display mode.
func (s *Store) SetPendingMode(m Mode) error {
	if m != ModeCurated && m != ModeUnrestricted {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	s.state.Edit(func(st *State) { st.Mode = m })
	return nil
}

// OpenPanel marks the filter panel as open.
func (s *Store) OpenPanel() {
	s.panelOpen = true
}

// PanelOpen reports whether the filter panel is open.
func (s *Store) PanelOpen() bool {
	return s.panelOpen
}

// Apply commits pending to applied and closes the panel.
func (s *Store) Apply() {
	s.state.Commit()
	s.panelOpen = false
}

// Clear resets pending and applied to the default state.
func (s *Store) Clear() {
	s.state.Reset(DefaultState())
}

// Pending returns a copy of the pending state.
func (s *Store) Pending() State {
	return s.state.Draft()
}

// Applied returns a copy of the applied state.
func (s *Store) Applied() State {
	return s.state.Committed()
}
