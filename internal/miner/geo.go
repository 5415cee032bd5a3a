package miner

import (
	"fmt"
	"math"

	"github.com/lifestream/lifestream/internal/store"
)

// degreesToMeters is the flat conversion used for cluster radii. It is
// only accurate near the equator; good enough for "how big is this
// place" at the ~100 m scale the miner works at.
const degreesToMeters = 111000

// ClusterLocations groups GPS fixes into frequently-visited places.
// Fewer than minClusterSize points yields an empty list, not an error.
// Noise points are discarded.
func ClusterLocations(points []store.GeoPoint, epsDegrees float64, minClusterSize int) []store.Pattern {
	if len(points) < minClusterSize {
		return nil
	}

	labels := dbscan(points, epsDegrees, minClusterSize)

	clusters := make(map[int][]int)
	maxLabel := noise
	for i, label := range labels {
		if label == noise {
			continue
		}
		clusters[label] = append(clusters[label], i)
		if label > maxLabel {
			maxLabel = label
		}
	}

	var patterns []store.Pattern
	for label := 0; label <= maxLabel; label++ {
		members := clusters[label]
		if len(members) == 0 {
			continue
		}

		var sumLat, sumLon float64
		for _, i := range members {
			sumLat += points[i].Lat
			sumLon += points[i].Lon
		}
		centerLat := sumLat / float64(len(members))
		centerLon := sumLon / float64(len(members))

		var maxDistSq float64
		hourCounts := make(map[int]int)
		first := points[members[0]].Time
		last := points[members[0]].Time
		for _, i := range members {
			dLat := points[i].Lat - centerLat
			dLon := points[i].Lon - centerLon
			if d := dLat*dLat + dLon*dLon; d > maxDistSq {
				maxDistSq = d
			}
			hourCounts[points[i].Time.Hour()]++
			if points[i].Time.Before(first) {
				first = points[i].Time
			}
			if points[i].Time.After(last) {
				last = points[i].Time
			}
		}
		radiusMeters := math.Sqrt(maxDistSq) * degreesToMeters
		hour := modeHour(hourCounts)

		occurrences := len(members)
		hourDist := make(map[string]any, len(hourCounts))
		for h, c := range hourCounts {
			hourDist[fmt.Sprintf("%d", h)] = c
		}

		patterns = append(patterns, store.Pattern{
			PatternType:  store.PatternLocationCluster,
			Fingerprint:  store.LocationFingerprint(centerLat, centerLon),
			Name:         fmt.Sprintf("%s #%d", placeName(hour), label),
			Description:  fmt.Sprintf("Frequently visited place (%d visits)", occurrences),
			Confidence:   math.Min(0.95, 0.5+float64(occurrences)/100),
			CenterLat:    &centerLat,
			CenterLon:    &centerLon,
			RadiusMeters: &radiusMeters,
			FirstSeen:    first,
			LastSeen:     last,
			Occurrences:  occurrences,
			IsActive:     true,
			Evidence: map[string]any{
				"visit_count":              occurrences,
				"most_common_hour":         hour,
				"visit_hours_distribution": hourDist,
			},
		})
	}
	return patterns
}

// modeHour returns the most common visit hour; ties resolve to the
// lowest hour so repeated runs agree.
func modeHour(counts map[int]int) int {
	best, bestCount := 12, 0
	for h := 0; h < 24; h++ {
		if c := counts[h]; c > bestCount {
			best, bestCount = h, c
		}
	}
	return best
}

func placeName(hour int) string {
	switch {
	case hour >= 6 && hour <= 9:
		return "Morning place"
	case hour >= 9 && hour <= 18:
		return "Daytime place"
	case hour >= 18 && hour <= 22:
		return "Evening place"
	default:
		return "Night place"
	}
}
