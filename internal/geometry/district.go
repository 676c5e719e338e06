package geometry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// DistrictManager derives per-district boundary hulls from listing
// coordinates for the dashboard map overlay.
type DistrictManager struct {
	db         *sql.DB
	logger     *logrus.Logger
	outputPath string

	mu    sync.RWMutex
	hulls *geojson.FeatureCollection
}

func NewDistrictManager(db *sql.DB, logger *logrus.Logger, outputPath string) *DistrictManager {
	return &DistrictManager{
		db:         db,
		logger:     logger,
		outputPath: outputPath,
	}
}

// GetDistrictPoints returns listing coordinates grouped by district.
func (dm *DistrictManager) GetDistrictPoints() (map[string][]orb.Point, error) {
	rows, err := dm.db.Query(`
		SELECT district, longitude, latitude
		FROM properties
		WHERE district IS NOT NULL AND district != ''
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query district points: %v", err)
	}
	defer rows.Close()

	points := make(map[string][]orb.Point)
	for rows.Next() {
		var district string
		var lng, lat float64
		if err := rows.Scan(&district, &lng, &lat); err != nil {
			return nil, fmt.Errorf("failed to scan district point: %v", err)
		}
		points[district] = append(points[district], orb.Point{lng, lat})
	}

	return points, rows.Err()
}

// UpdateDistrictHulls recomputes every district hull and persists the
// FeatureCollection to the configured output path.
func (dm *DistrictManager) UpdateDistrictHulls() error {
	pointsByDistrict, err := dm.GetDistrictPoints()
	if err != nil {
		return err
	}

	fc := geojson.NewFeatureCollection()
	districts := make([]string, 0, len(pointsByDistrict))
	for district := range pointsByDistrict {
		districts = append(districts, district)
	}
	sort.Strings(districts)

	for _, district := range districts {
		points := pointsByDistrict[district]
		if len(points) < 3 {
			dm.logger.WithFields(logrus.Fields{
				"district": district,
				"points":   len(points),
			}).Debug("Not enough points for a hull")
			continue
		}

		hull := convexHull(points)
		if len(hull) < 3 {
			continue
		}

		ring := make(orb.Ring, 0, len(hull)+1)
		ring = append(ring, hull...)
		ring = append(ring, hull[0])

		feature := geojson.NewFeature(orb.Polygon{ring})
		feature.Properties["district"] = district
		feature.Properties["listing_count"] = len(points)
		fc.Append(feature)
	}

	dm.mu.Lock()
	dm.hulls = fc
	dm.mu.Unlock()

	if err := dm.saveHulls(fc); err != nil {
		return err
	}

	dm.logger.WithField("districts", len(fc.Features)).Info("Updated district hulls")
	return nil
}

// GetHulls returns the last computed FeatureCollection, or an empty one.
func (dm *DistrictManager) GetHulls() *geojson.FeatureCollection {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if dm.hulls == nil {
		return geojson.NewFeatureCollection()
	}
	return dm.hulls
}

func (dm *DistrictManager) saveHulls(fc *geojson.FeatureCollection) error {
	if dm.outputPath == "" {
		return nil
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal district hulls: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(dm.outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	if err := os.WriteFile(dm.outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write district hulls: %v", err)
	}

	return nil
}

// convexHull computes the convex hull of the points using the monotone chain
// algorithm. The result is in counter-clockwise order without the closing point.
func convexHull(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		return points
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	var lower []orb.Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []orb.Point
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}
