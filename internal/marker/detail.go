package marker

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/metamapa/mapgateway/internal/incident"
)

// UnknownDate is shown for markers without a usable event date.
const UnknownDate = "Fecha desconocida"

var spanishMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "ahora", DivBy: time.Second},
	{D: 2 * time.Second, Format: "%s 1 segundo", DivBy: 1},
	{D: time.Minute, Format: "%s %d segundos", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "%s 1 minuto", DivBy: 1},
	{D: time.Hour, Format: "%s %d minutos", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "%s 1 hora", DivBy: 1},
	{D: humanize.Day, Format: "%s %d horas", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "%s 1 día", DivBy: 1},
	{D: humanize.Week, Format: "%s %d días", DivBy: humanize.Day},
	{D: 2 * humanize.Week, Format: "%s 1 semana", DivBy: 1},
	{D: humanize.Month, Format: "%s %d semanas", DivBy: humanize.Week},
	{D: 2 * humanize.Month, Format: "%s 1 mes", DivBy: 1},
	{D: humanize.Year, Format: "%s %d meses", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "%s 1 año", DivBy: 1},
	{D: humanize.LongTime, Format: "%s %d años", DivBy: humanize.Year},
	{D: math.MaxInt64, Format: "hace muchísimo tiempo", DivBy: 1},
}

// RelativeDate renders t relative to now in Spanish ("hace 3 días").
func RelativeDate(t, now time.Time) string {
	if t.IsZero() {
		return UnknownDate
	}
	return humanize.CustomRelTime(t, now, "hace", "dentro de", spanishMagnitudes)
}

// Detail is the content of a pin's popup.
type Detail struct {
	ID              string
	Title           string
	Category        string
	Kind            Category
	Icon            string
	Description     string
	AdminSuggestion string
	EventDate       time.Time
	RelativeDate    string
	MediaCount      int
}

// ShowAdminSuggestion reports whether the admin suggestion block is rendered.
func (d Detail) ShowAdminSuggestion() bool {
	return d.AdminSuggestion != ""
}

// HasMedia reports whether the popup offers the media viewer.
func (d Detail) HasMedia() bool {
	return d.MediaCount > 0
}

// NewDetail builds the popup content of m as seen at now.
func NewDetail(m incident.Marker, icons *IconSet, now time.Time) Detail {
	kind := ParseCategory(m.Category)
	return Detail{
		ID:              m.ID,
		Title:           m.Title,
		Category:        m.Category,
		Kind:            kind,
		Icon:            icons.Icon(kind),
		Description:     m.Description,
		AdminSuggestion: m.AdminSuggestion,
		EventDate:       m.EventDate,
		RelativeDate:    RelativeDate(m.EventDate, now),
		MediaCount:      len(m.MediaURLs),
	}
}
