package models

// Collection is a selectable incident collection.
type Collection struct {
	Handle      string `json:"handle"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"`
}

// CollectionList is the response of the collection listing.
type CollectionList struct {
	Items []Collection `json:"items"`
}

// Category is an incident category with its pin icon.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// CategoryList is the response of the category listing.
type CategoryList struct {
	Items       []Category `json:"items"`
	DefaultIcon string     `json:"defaultIcon"`
}

// FeatureFlag is a runtime switch as exposed to operators.
type FeatureFlag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt *Timestamp  `json:"updatedAt,omitempty"`
}

// FeatureFlagList is the response of the feature flag listing.
type FeatureFlagList struct {
	Flags []FeatureFlag `json:"flags"`
}

// UpsertFeatureFlagsRequest updates several flags at once.
type UpsertFeatureFlagsRequest struct {
	Flags []FeatureFlag `json:"flags"`
}

// Me is the profile carried by the caller's bearer token.
type Me struct {
	Subject   string     `json:"subject"`
	Username  string     `json:"username,omitempty"`
	Roles     []string   `json:"roles"`
	ExpiresAt *Timestamp `json:"expiresAt,omitempty"`
}
