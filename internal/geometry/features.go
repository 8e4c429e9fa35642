package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"proptrack/server/internal/models"
)

const (
	// ApproximateRadius is the radius in meters of the area drawn for a
	// listing whose location is only approximately known.
	ApproximateRadius = 200.0

	circleSegments = 32
)

// FeatureCollection renders the listings for the map. Precise listings
// become points, approximated ones a circle around the geocoded position.
func FeatureCollection(properties []models.Property) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(properties) == 0 {
		return fc
	}

	var bound orb.Bound
	for i, p := range properties {
		center := orb.Point{p.Longitude, p.Latitude}

		var geometry orb.Geometry = center
		if p.IsApproximated {
			geometry = Circle(center, ApproximateRadius)
		}

		if i == 0 {
			bound = geometry.Bound()
		} else {
			bound = bound.Union(geometry.Bound())
		}

		feature := geojson.NewFeature(geometry)
		feature.ID = p.ID
		feature.Properties = geojson.Properties{
			"id":              p.ID,
			"name":            p.Name,
			"status":          string(p.Status),
			"price_per_month": p.PricePerMonth,
			"rooms":           p.Rooms,
			"is_favorite":     p.IsFavorite,
			"is_approximated": p.IsApproximated,
			"url":             p.URL,
		}
		fc.Append(feature)
	}

	fc.BBox = geojson.NewBBox(bound)
	return fc
}

// Circle approximates a circle of radius meters around center as a closed
// polygon ring.
func Circle(center orb.Point, radius float64) orb.Polygon {
	ring := make(orb.Ring, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		bearing := float64(i) * 360.0 / circleSegments
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radius))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
