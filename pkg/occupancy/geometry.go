/*
 * Copyright 2025 SmartPark Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package occupancy

import (
	"math"

	"github.com/smartpark/parkedge/pkg/models"
)

const geomEpsilon = 1e-9

// pointInPolygon reports whether p lies inside the polygon, boundary
// inclusive. Zero-area polygons never contain anything.
func pointInPolygon(p models.Point, polygon []models.Point) bool {
	if len(polygon) < 3 {
		return false
	}

	if math.Abs(polygonArea(polygon)) < geomEpsilon {
		return false
	}

	for i := range polygon {
		j := (i + 1) % len(polygon)
		if pointOnSegment(p, polygon[i], polygon[j]) {
			return true
		}
	}

	// Ray crossing test for strict interior points.
	inside := false

	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		pi, pj := polygon[i], polygon[j]

		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			crossX := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < crossX {
				inside = !inside
			}
		}
	}

	return inside
}

// polygonArea computes the signed shoelace area.
func polygonArea(polygon []models.Point) float64 {
	area := 0.0

	for i := range polygon {
		j := (i + 1) % len(polygon)
		area += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}

	return area / 2
}

// pointOnSegment reports whether p lies on the segment ab.
func pointOnSegment(p, a, b models.Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math.Abs(cross) > geomEpsilon {
		return false
	}

	return p.X >= math.Min(a.X, b.X)-geomEpsilon && p.X <= math.Max(a.X, b.X)+geomEpsilon &&
		p.Y >= math.Min(a.Y, b.Y)-geomEpsilon && p.Y <= math.Max(a.Y, b.Y)+geomEpsilon
}
