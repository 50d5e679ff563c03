// Package marker turns incident markers into map pins and tracks the pin
// popup and media viewer state of a map session.
package marker

import "strings"

// Category is the closed set of incident categories with their own pin icon.
type Category string

const (
	CategoryFire         Category = "incendio"
	CategoryFlood        Category = "inundacion"
	CategoryEarthquake   Category = "sismo"
	CategoryLandslide    Category = "derrumbe"
	CategoryStorm        Category = "tormenta"
	CategoryRoadAccident Category = "accidente_vial"
	CategoryPollution    Category = "contaminacion"
	CategoryDrought      Category = "sequia"

	// CategoryOther covers every category without a dedicated icon.
	CategoryOther Category = "otro"
)

// Categories lists the known categories in display order, CategoryOther last.
var Categories = []Category{
	CategoryFire,
	CategoryFlood,
	CategoryEarthquake,
	CategoryLandslide,
	CategoryStorm,
	CategoryRoadAccident,
	CategoryPollution,
	CategoryDrought,
	CategoryOther,
}

var labels = map[Category]string{
	CategoryFire:         "Incendio",
	CategoryFlood:        "Inundación",
	CategoryEarthquake:   "Sismo",
	CategoryLandslide:    "Derrumbe",
	CategoryStorm:        "Tormenta",
	CategoryRoadAccident: "Accidente vial",
	CategoryPollution:    "Contaminación",
	CategoryDrought:      "Sequía",
	CategoryOther:        "Otro",
}

// aliases are keyed by folded text (lowercase, no accents).
var aliases = map[string]Category{
	"incendio":          CategoryFire,
	"incendios":         CategoryFire,
	"incendio forestal": CategoryFire,
	"fuego":             CategoryFire,
	"inundacion":        CategoryFlood,
	"inundaciones":      CategoryFlood,
	"crecida":           CategoryFlood,
	"sismo":             CategoryEarthquake,
	"terremoto":         CategoryEarthquake,
	"temblor":           CategoryEarthquake,
	"derrumbe":          CategoryLandslide,
	"deslizamiento":     CategoryLandslide,
	"alud":              CategoryLandslide,
	"tormenta":          CategoryStorm,
	"granizo":           CategoryStorm,
	"tornado":           CategoryStorm,
	"accidente vial":    CategoryRoadAccident,
	"accidente_vial":    CategoryRoadAccident,
	"accidente":         CategoryRoadAccident,
	"choque":            CategoryRoadAccident,
	"contaminacion":     CategoryPollution,
	"derrame":           CategoryPollution,
	"sequia":            CategoryDrought,
}

var foldAccents = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u")

// ParseCategory maps free-text category names from the backend onto the
// closed set. Matching is trimmed and case- and accent-insensitive; anything
// unknown is CategoryOther.
func ParseCategory(raw string) Category {
	key := foldAccents.Replace(strings.ToLower(strings.TrimSpace(raw)))
	key = strings.Join(strings.Fields(key), " ")
	if c, ok := aliases[key]; ok {
		return c
	}
	return CategoryOther
}

// Label returns the display name of the category.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return labels[CategoryOther]
}

// Known reports whether c is one of Categories.
func (c Category) Known() bool {
	_, ok := labels[c]
	return ok
}
