package models

// Bounds is a geographic bounding box in degrees.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Viewport is the visible map area of a session.
type Viewport struct {
	Bounds   *Bounds `json:"bounds,omitempty"`
	Zoom     int     `json:"zoom"`
	CanQuery bool    `json:"canQuery"`
}

// DateRange is an inclusive YYYY-MM-DD day range.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// FilterCriteria are the incident filters of the filter panel.
type FilterCriteria struct {
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	HasMedia     string    `json:"hasMedia,omitempty"`
	EventDate    DateRange `json:"eventDate"`
	UploadDate   DateRange `json:"uploadDate"`
	DesiredState string    `json:"desiredState,omitempty"`
}

// CollectionRef references a collection picked in the filter panel.
type CollectionRef struct {
	Handle      string `json:"handle"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// FilterState is one side (pending or applied) of the filter panel.
type FilterState struct {
	Criteria   FilterCriteria `json:"criteria"`
	Collection *CollectionRef `json:"collection,omitempty"`
	Mode       string         `json:"mode"`
}

// FilterPanel is the filter panel of a session.
type FilterPanel struct {
	Pending   FilterState `json:"pending"`
	Applied   FilterState `json:"applied"`
	PanelOpen bool        `json:"panelOpen"`
}

// Pin is one incident marker on the map.
type Pin struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	CategoryKey string     `json:"categoryKey"`
	Icon        string     `json:"icon"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	HasMedia    bool       `json:"hasMedia"`
	EventDate   *Timestamp `json:"eventDate,omitempty"`
}

// MarkerDetail is the content of an open marker popup.
type MarkerDetail struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	CategoryKey     string     `json:"categoryKey"`
	Icon            string     `json:"icon"`
	Description     string     `json:"description,omitempty"`
	AdminSuggestion *string    `json:"adminSuggestion,omitempty"`
	EventDate       *Timestamp `json:"eventDate,omitempty"`
	RelativeDate    string     `json:"relativeDate"`
	MediaCount      int        `json:"mediaCount"`
	HasMedia        bool       `json:"hasMedia"`
}

// MediaViewer is the open media viewer.
type MediaViewer struct {
	MarkerID string `json:"markerId"`
	Index    int    `json:"index"`
	Count    int    `json:"count"`
	URL      string `json:"url"`
}

// MapStatus is the status line under the map.
type MapStatus struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// MapSession is the full client-visible state of a map session.
type MapSession struct {
	ID          string        `json:"id"`
	Viewport    Viewport      `json:"viewport"`
	Filters     FilterPanel   `json:"filters"`
	Markers     []Pin         `json:"markers"`
	MarkerCount int           `json:"markerCount"`
	Status      MapStatus     `json:"status"`
	Loading     bool          `json:"loading"`
	Selected    *MarkerDetail `json:"selected,omitempty"`
	Media       *MediaViewer  `json:"media,omitempty"`
	UpdatedAt   Timestamp     `json:"updatedAt"`
}

// MoveViewportRequest reports the bounds after a pan.
type MoveViewportRequest struct {
	Bounds *Bounds `json:"bounds"`
}

// ZoomViewportRequest reports the zoom level after a zoom.
type ZoomViewportRequest struct {
	Zoom *int `json:"zoom"`
}

// PendingFiltersPatch maps criteria field names ("title", "eventDate.from") to values.
type PendingFiltersPatch map[string]string

// SetCollectionRequest selects a collection by handle; an empty handle unselects.
type SetCollectionRequest struct {
	Handle string `json:"handle"`
}

// SetModeRequest sets the collection display mode.
type SetModeRequest struct {
	Mode string `json:"mode"`
}

// OpenMediaRequest opens the media viewer on a marker.
type OpenMediaRequest struct {
	MarkerID string `json:"markerId"`
}

// CreateSessionRequest optionally seeds a new session with a viewport.
type CreateSessionRequest struct {
	Bounds *Bounds `json:"bounds,omitempty"`
	Zoom   *int    `json:"zoom,omitempty"`
}
