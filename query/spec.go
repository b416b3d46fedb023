// Package query builds the filter/sort/pagination specs consumed by the
// issue store, including the role-conditional location constraint used by
// the officer dashboard.
package query

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-core/models"
)

const (
	DefaultLimit     = 20
	DefaultSortField = "createdAt"
	DefaultOrder     = "desc"

	// OfficerProximityMeters is the dashboard radius used when an officer
	// profile carries coordinates but no region.
	OfficerProximityMeters = 10000.0
)

// LocationKind tags the location constraint variant. Exactly one variant
// applies to a query; region equality and proximity are never combined.
type LocationKind int

const (
	LocationNone LocationKind = iota
	LocationRegion
	LocationProximity
)

// LocationConstraint is the tagged-variant location filter.
type LocationConstraint struct {
	Kind         LocationKind
	Region       string
	Longitude    float64
	Latitude     float64
	RadiusMeters float64
}

// Spec is a fully resolved filter, sort, and pagination window. Zero-valued
// filter fields are omitted from the query, not treated as wildcards.
type Spec struct {
	Status     string
	Region     string
	Category   string
	Priority   string
	ReportedBy *primitive.ObjectID

	Location LocationConstraint

	SortBy string
	Order  string
	Page   int
	Limit  int
}

// Skip returns the pagination offset.
func (s Spec) Skip() int {
	return (s.Page - 1) * s.Limit
}

// Descending reports whether the sort direction is descending.
func (s Spec) Descending() bool {
	return s.Order != "asc"
}

// TotalPages returns ceil(total/limit); zero when limit is not positive.
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Params are raw, caller-supplied query parameters.
type Params struct {
	Status     string
	Region     string
	Category   string
	Priority   string
	ReportedBy *primitive.ObjectID
	SortBy     string
	Order      string
	Page       int
	Limit      int
}

// Build resolves raw parameters into a Spec, applying the default sort
// (createdAt descending) and pagination window (page 1, limit 20).
func Build(p Params) Spec {
	spec := Spec{
		Status:     p.Status,
		Region:     p.Region,
		Category:   p.Category,
		Priority:   p.Priority,
		ReportedBy: p.ReportedBy,
		SortBy:     p.SortBy,
		Order:      p.Order,
		Page:       p.Page,
		Limit:      p.Limit,
	}
	if spec.SortBy == "" {
		spec.SortBy = DefaultSortField
	}
	if spec.Order != "asc" {
		spec.Order = DefaultOrder
	}
	if spec.Page < 1 {
		spec.Page = 1
	}
	if spec.Limit < 1 {
		spec.Limit = DefaultLimit
	}
	return spec
}

// ForOfficer applies the officer-dashboard fallback policy to a base spec:
// a profile region filters by exact match, otherwise profile coordinates
// switch to a proximity filter, otherwise no location constraint applies.
func ForOfficer(base Spec, profile *models.UserLocation) Spec {
	base.Region = ""
	base.Location = LocationConstraint{Kind: LocationNone}

	if profile == nil {
		return base
	}

	switch {
	case profile.Region != "":
		base.Location = LocationConstraint{
			Kind:   LocationRegion,
			Region: profile.Region,
		}
	case len(profile.Coordinates) == 2:
		base.Location = LocationConstraint{
			Kind:         LocationProximity,
			Longitude:    profile.Coordinates[0],
			Latitude:     profile.Coordinates[1],
			RadiusMeters: OfficerProximityMeters,
		}
	}
	return base
}
