package marker_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/incident"
	"github.com/metamapa/mapgateway/internal/marker"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want marker.Category
	}{
		{"Incendio forestal", marker.CategoryFire},
		{"  INUNDACIONES ", marker.CategoryFlood},
		{"Inundación", marker.CategoryFlood},
		{"sismo", marker.CategoryEarthquake},
		{"Accidente   Vial", marker.CategoryRoadAccident},
		{"Sequía", marker.CategoryDrought},
		{"General", marker.CategoryOther},
		{"", marker.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, marker.ParseCategory(tt.raw))
		})
	}
}

func TestCategory_Label(t *testing.T) {
	assert.Equal(t, "Inundación", marker.CategoryFlood.Label())
	assert.Equal(t, "Otro", marker.Category("nope").Label())
	assert.False(t, marker.Category("nope").Known())
	for _, c := range marker.Categories {
		assert.True(t, c.Known(), c)
	}
}

func TestDefaultIconSet(t *testing.T) {
	icons := marker.DefaultIconSet()

	assert.Equal(t, "/static/icons/incendio.png", icons.Icon(marker.ParseCategory(" incendio FORESTAL")))
	assert.Equal(t, "/static/icons/default.png", icons.Icon(marker.ParseCategory("General")))
	assert.Equal(t, icons.Default(), icons.Icon(marker.CategoryOther))
	for _, c := range marker.Categories {
		assert.NotEmpty(t, icons.Icon(c))
	}
}

func TestLoadIconSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icons.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: /d.png\nicons:\n  sismo: /s.png\n"), 0o600))

	icons, err := marker.LoadIconSet(path)
	require.NoError(t, err)
	assert.Equal(t, "/s.png", icons.Icon(marker.CategoryEarthquake))
	assert.Equal(t, "/d.png", icons.Icon(marker.CategoryFire))

	embedded, err := marker.LoadIconSet("")
	require.NoError(t, err)
	assert.Equal(t, "/static/icons/default.png", embedded.Default())

	_, err = marker.LoadIconSet(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseIconSet_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"no default":       "icons:\n  sismo: /s.png\n",
		"unknown category": "default: /d.png\nicons:\n  volcan: /v.png\n",
		"not yaml":         "default: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := marker.ParseIconSet([]byte(doc))
			assert.ErrorIs(t, err, marker.ErrInvalidIconTable)
		})
	}
}

func TestSelection(t *testing.T) {
	var s marker.Selection

	assert.Empty(t, s.Open("1"))
	assert.Equal(t, "1", s.Open("2"), "opening a popup closes the previous one")

	id, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "2", id)

	s.Close()
	_, ok = s.Selected()
	assert.False(t, ok)

	present := func(id string) bool { return id == "3" }
	s.Restore("3", present)
	id, _ = s.Selected()
	assert.Equal(t, "3", id)
	s.Restore("4", present)
	_, ok = s.Selected()
	assert.False(t, ok)
}

func TestMediaViewer_Wraparound(t *testing.T) {
	var v marker.MediaViewer
	require.NoError(t, v.Open("m1", []string{"a", "b", "c"}))

	v.Prev()
	assert.Equal(t, 2, v.Index(), "prev from the first item goes to the last")

	v.Next()
	assert.Equal(t, 0, v.Index(), "next from the last item goes to the first")

	v.Next()
	cur, ok := v.Current()
	assert.True(t, ok)
	assert.Equal(t, "b", cur)
	assert.Equal(t, "m1", v.MarkerID())
	assert.Equal(t, 3, v.Len())
}

func TestMediaViewer_FullCycle(t *testing.T) {
	var v marker.MediaViewer
	urls := []string{"a", "b", "c", "d"}
	require.NoError(t, v.Open("m", urls))

	for i := 0; i < len(urls); i++ {
		v.Next()
	}
	assert.Equal(t, 0, v.Index())
	for i := 0; i < len(urls); i++ {
		v.Prev()
	}
	assert.Equal(t, 0, v.Index())
}

func TestMediaViewer_ClosedAndEmpty(t *testing.T) {
	var v marker.MediaViewer
	assert.ErrorIs(t, v.Open("m", nil), marker.ErrNoMedia)
	assert.False(t, v.IsOpen())

	v.Next()
	v.Prev()
	_, ok := v.Current()
	assert.False(t, ok)

	require.NoError(t, v.Open("m", []string{"a"}))
	v.Next()
	assert.Equal(t, 0, v.Index())
	v.Close()
	assert.False(t, v.IsOpen())
	assert.Zero(t, v.Len())
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		t    time.Time
		want string
	}{
		{now, "ahora"},
		{now.Add(-5 * time.Minute), "hace 5 minutos"},
		{now.Add(-3 * time.Hour), "hace 3 horas"},
		{now.Add(-30 * time.Hour), "hace 1 día"},
		{now.Add(-4 * 24 * time.Hour), "hace 4 días"},
		{now.Add(2 * time.Hour), "dentro de 2 horas"},
		{time.Time{}, marker.UnknownDate},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, marker.RelativeDate(tt.t, now))
		})
	}
}

func TestNewDetail(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := incident.Marker{
		ID:          "9",
		Title:       "Calle anegada",
		Category:    "Inundación",
		Description: "agua hasta la rodilla",
		EventDate:   now.Add(-48 * time.Hour),
		MediaURLs:   []string{"https://cdn/x.jpg"},
	}

	d := marker.NewDetail(m, marker.DefaultIconSet(), now)

	assert.Equal(t, marker.CategoryFlood, d.Kind)
	assert.Equal(t, "/static/icons/inundacion.png", d.Icon)
	assert.Equal(t, "hace 2 días", d.RelativeDate)
	assert.False(t, d.ShowAdminSuggestion())
	assert.True(t, d.HasMedia())

	m.AdminSuggestion = "Agregar fotos"
	assert.True(t, marker.NewDetail(m, marker.DefaultIconSet(), now).ShowAdminSuggestion())
}

func TestPinsAndGeoJSON(t *testing.T) {
	markers := []incident.Marker{
		{ID: "1", Title: "A", Category: "Sismo", Latitude: -34.6, Longitude: -58.4},
		{ID: "2", Title: "B", Category: "General", Latitude: -34.7, Longitude: -58.5, MediaURLs: []string{"u"}},
	}

	pins := marker.Pins(markers, marker.DefaultIconSet())
	require.Len(t, pins, 2)
	assert.Equal(t, marker.CategoryEarthquake, pins[0].Category)
	assert.Equal(t, "/static/icons/default.png", pins[1].Icon)
	assert.True(t, pins[1].HasMedia)

	fc := marker.ToGeoJSON(pins)
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, []float64{-58.4, -34.6}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "Sismo", fc.Features[0].Properties["categoria"])
	assert.NotContains(t, fc.Features[0].Properties, "fechaAcontecimiento")
}
