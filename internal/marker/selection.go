package marker

import "errors"

// ErrNoMedia is returned when opening the viewer on a marker without media.
var ErrNoMedia = errors.New("marker has no media")

// Selection tracks the single pin whose detail popup is open.
type Selection struct {
	id string
}

// Open selects id, implicitly closing any other popup. It returns the id
// that was open before, if any.
func (s *Selection) Open(id string) (previous string) {
	previous = s.id
	s.id = id
	return previous
}

// Close closes the open popup.
func (s *Selection) Close() {
	s.id = ""
}

// Selected returns the open marker id.
func (s *Selection) Selected() (string, bool) {
	return s.id, s.id != ""
}

// Restore reopens id only when it is still part of the marker set.
func (s *Selection) Restore(id string, present func(string) bool) {
	if id != "" && present(id) {
		s.id = id
		return
	}
	s.id = ""
}

// MediaViewer is the full-screen viewer over one marker's media list.
// It is independent of the popup: closing one leaves the other as is.
type MediaViewer struct {
	markerID string
	urls     []string
	index    int
	open     bool
}

// Open shows the media of markerID starting at the first item.
func (v *MediaViewer) Open(markerID string, urls []string) error {
	if len(urls) == 0 {
		return ErrNoMedia
	}
	v.markerID = markerID
	v.urls = append([]string(nil), urls...)
	v.index = 0
	v.open = true
	return nil
}

// Next advances one item, wrapping from the last to the first.
func (v *MediaViewer) Next() {
	if !v.open {
		return
	}
	v.index = (v.index + 1) % len(v.urls)
}

// Prev goes back one item, wrapping from the first to the last.
func (v *MediaViewer) Prev() {
	if !v.open {
		return
	}
	v.index = (v.index - 1 + len(v.urls)) % len(v.urls)
}

// Close hides the viewer.
func (v *MediaViewer) Close() {
	*v = MediaViewer{}
}

// IsOpen reports whether the viewer is showing.
func (v *MediaViewer) IsOpen() bool {
	return v.open
}

// MarkerID returns the marker whose media is shown.
func (v *MediaViewer) MarkerID() string {
	return v.markerID
}

// Index returns the current position.
func (v *MediaViewer) Index() int {
	return v.index
}

// Len returns the number of media items.
func (v *MediaViewer) Len() int {
	return len(v.urls)
}

// Current returns the URL being shown.
func (v *MediaViewer) Current() (string, bool) {
	if !v.open {
		return "", false
	}
	return v.urls[v.index], true
}
