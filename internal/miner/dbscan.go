// Package miner discovers behavioral patterns in a user's event
// history: location clusters from raw GPS fixes and hourly routines
// from activity rollups.
package miner

import "github.com/lifestream/lifestream/internal/store"

// noise marks points belonging to no cluster.
const noise = -1

// dbscan assigns a cluster label to every point, or noise. eps is the
// neighborhood radius in degrees, Euclidean over (lat, lon).
//
// Points are visited and expanded strictly in input order, so identical
// input always yields identical labels.
func dbscan(points []store.GeoPoint, eps float64, minPts int) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = noise
	}
	visited := make([]bool, len(points))

	epsSq := eps * eps
	cluster := 0

	for i := range points {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(points, i, epsSq)
		if len(neighbors) < minPts {
			continue
		}

		labels[i] = cluster
		// Expand the cluster breadth-first over the seed queue.
		for qi := 0; qi < len(neighbors); qi++ {
			j := neighbors[qi]
			if !visited[j] {
				visited[j] = true
				jn := regionQuery(points, j, epsSq)
				if len(jn) >= minPts {
					neighbors = append(neighbors, jn...)
				}
			}
			if labels[j] == noise {
				labels[j] = cluster
			}
		}
		cluster++
	}
	return labels
}

// regionQuery returns indexes of all points within eps of points[i],
// the point itself included, in index order.
func regionQuery(points []store.GeoPoint, i int, epsSq float64) []int {
	var out []int
	pi := points[i]
	for j := range points {
		dLat := points[j].Lat - pi.Lat
		dLon := points[j].Lon - pi.Lon
		if dLat*dLat+dLon*dLon <= epsSq {
			out = append(out, j)
		}
	}
	return out
}
