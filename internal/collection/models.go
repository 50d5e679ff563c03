// Package collection lists the MetaMapa collections a map can be filtered by.
package collection

import (
	"errors"
	"time"

	"github.com/metamapa/mapgateway/internal/filter"
)

var (
	ErrNotFound          = errors.New("collection not found")
	ErrSourceUnavailable = errors.New("collection source unavailable")
)

// Collection is a named, rule-defined grouping of incidents.
type Collection struct {
	Handle      string
	Title       string
	Description string
	Algorithm   string
}

// Selection converts the collection into the filter panel selection.
func (c Collection) Selection() filter.CollectionSelection {
	return filter.CollectionSelection{
		Handle:      c.Handle,
		Title:       c.Title,
		Description: c.Description,
	}
}

// Listing is one fetched set of collections.
type Listing struct {
	Collections []Collection
	FetchedAt   time.Time
}
