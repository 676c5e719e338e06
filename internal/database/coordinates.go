package database

import (
	"fmt"

	"brickdesk/server/internal/geocoding"
)

// UpdateMissingCoordinates backfills latitude/longitude for listings that
// have an address but no coordinates yet.
func (d *Database) UpdateMissingCoordinates(geocoder *geocoding.Geocoder) error {
	rows, err := d.db.Query(`
        SELECT id, address, district, city
        FROM properties
        WHERE (latitude IS NULL OR longitude IS NULL)
          AND address IS NOT NULL AND address != ''
    `)
	if err != nil {
		return fmt.Errorf("failed to query properties without coordinates: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id                      int64
		address, district, city string
	}
	var queue []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.address, &p.district, &p.city); err != nil {
			return err
		}
		queue = append(queue, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range queue {
		lat, lng, err := geocoder.GeocodeAddress(p.address, p.district, p.city)
		if err != nil {
			// Skip listings the geocoder cannot resolve; retried on the next run.
			continue
		}
		if _, err := d.db.Exec(
			"UPDATE properties SET latitude = ?, longitude = ? WHERE id = ?",
			lat, lng, p.id,
		); err != nil {
			return fmt.Errorf("failed to update coordinates for property %d: %w", p.id, err)
		}
	}

	return nil
}
