package handler

import (
	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/collection"
	"github.com/metamapa/mapgateway/internal/filter"
	"github.com/metamapa/mapgateway/internal/mapview"
	"github.com/metamapa/mapgateway/internal/marker"
	"github.com/metamapa/mapgateway/internal/viewport"
)

func toMapSession(v mapview.View) models.MapSession {
	out := models.MapSession{
		ID: v.ID,
		Viewport: models.Viewport{
			Zoom:     v.Viewport.Zoom,
			CanQuery: v.CanQuery,
		},
		Filters: models.FilterPanel{
			Pending:   toFilterState(v.Filters.Pending),
			Applied:   toFilterState(v.Filters.Applied),
			PanelOpen: v.Filters.PanelOpen,
		},
		Markers:     toPins(v.Pins),
		MarkerCount: len(v.Pins),
		Status:      models.MapStatus{Kind: string(v.Status.Kind), Text: v.Status.Text},
		Loading:     v.Loading,
		UpdatedAt:   models.Timestamp(v.UpdatedAt),
	}
	if v.Viewport.HasBounds {
		b := toBounds(v.Viewport.Bounds)
		out.Viewport.Bounds = &b
	}
	if v.Selected != nil {
		d := toMarkerDetail(*v.Selected)
		out.Selected = &d
	}
	if v.Media != nil {
		out.Media = &models.MediaViewer{
			MarkerID: v.Media.MarkerID,
			Index:    v.Media.Index,
			Count:    v.Media.Count,
			URL:      v.Media.URL,
		}
	}
	return out
}

func toBounds(b viewport.Bounds) models.Bounds {
	return models.Bounds{South: b.South, West: b.West, North: b.North, East: b.East}
}

func fromBounds(b models.Bounds) viewport.Bounds {
	return viewport.Bounds{South: b.South, West: b.West, North: b.North, East: b.East}
}

func toFilterState(s filter.State) models.FilterState {
	c := s.Criteria
	out := models.FilterState{
		Criteria: models.FilterCriteria{
			Title:        c.Title,
			Description:  c.Description,
			Category:     c.Category,
			HasMedia:     c.HasMedia,
			EventDate:    models.DateRange{From: c.EventDate.From, To: c.EventDate.To},
			UploadDate:   models.DateRange{From: c.UploadDate.From, To: c.UploadDate.To},
			DesiredState: c.DesiredState,
		},
		Mode: string(s.Mode),
	}
	if s.Collection.Selected() {
		out.Collection = &models.CollectionRef{
			Handle:      s.Collection.Handle,
			Title:       s.Collection.Title,
			Description: s.Collection.Description,
		}
	}
	return out
}

func toPins(pins []marker.Pin) []models.Pin {
	out := make([]models.Pin, 0, len(pins))
	for _, p := range pins {
		out = append(out, models.Pin{
			ID:          p.ID,
			Title:       p.Title,
			Category:    p.RawLabel,
			CategoryKey: string(p.Category),
			Icon:        p.Icon,
			Lat:         p.Latitude,
			Lon:         p.Longitude,
			HasMedia:    p.HasMedia,
			EventDate:   models.OptionalTimestamp(p.EventDate),
		})
	}
	return out
}

func toMarkerDetail(d marker.Detail) models.MarkerDetail {
	out := models.MarkerDetail{
		ID:           d.ID,
		Title:        d.Title,
		Category:     d.Category,
		CategoryKey:  string(d.Kind),
		Icon:         d.Icon,
		Description:  d.Description,
		EventDate:    models.OptionalTimestamp(d.EventDate),
		RelativeDate: d.RelativeDate,
		MediaCount:   d.MediaCount,
		HasMedia:     d.HasMedia(),
	}
	if d.ShowAdminSuggestion() {
		s := d.AdminSuggestion
		out.AdminSuggestion = &s
	}
	return out
}

func toCollection(c collection.Collection) models.Collection {
	return models.Collection{
		Handle:      c.Handle,
		Title:       c.Title,
		Description: c.Description,
		Algorithm:   c.Algorithm,
	}
}
