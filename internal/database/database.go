package database

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"brickdesk/server/internal/models"
	"brickdesk/server/internal/normalize"
)

type Database struct {
	db  *sql.DB
	orm *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	orm, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	db, err := orm.DB()
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	return &Database{db: db, orm: orm}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}

func (d *Database) ORM() *gorm.DB {
	return d.orm
}

// GetProperties returns listings matching the filter. City, district, and
// keyword predicates run in SQL; status and price predicates run after the
// scan because both depend on the normalized status, which only exists in Go.
func (d *Database) GetProperties(filter models.PropertyFilter) ([]models.Property, error) {
	query := `
        SELECT id, title, community, district, city, address, status,
               listed_price, sold_price, unit_price, build_area,
               rooms, floor, year_built, latitude, longitude,
               listed_at, sold_at,
               COALESCE(created_at, CURRENT_TIMESTAMP) as created_at,
               COALESCE(updated_at, CURRENT_TIMESTAMP) as updated_at
        FROM properties
        WHERE 1=1
    `
	var args []interface{}

	cities := filter.Cities
	if filter.City != "" {
		cities = append(cities, filter.City)
	}
	if len(cities) > 0 {
		placeholders := make([]string, len(cities))
		for i, city := range cities {
			placeholders[i] = "LOWER(city) = LOWER(?)"
			args = append(args, city)
		}
		query += " AND (" + strings.Join(placeholders, " OR ") + ")"
	}
	if filter.District != "" {
		query += " AND district = ?"
		args = append(args, filter.District)
	}
	if filter.Keyword != "" {
		query += " AND (title LIKE ? OR community LIKE ? OR address LIKE ?)"
		kw := "%" + filter.Keyword + "%"
		args = append(args, kw, kw, kw)
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		if !matchesDerivedFilter(p, filter) {
			continue
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginate(properties, filter.Offset, filter.Limit), nil
}

func matchesDerivedFilter(p *models.Property, filter models.PropertyFilter) bool {
	if filter.Status != "" {
		if normalize.NormalizeStatus(p.Status) != normalize.Status(strings.ToUpper(filter.Status)) {
			return false
		}
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		price := normalize.DisplayPriceWan(p)
		if price == nil {
			return false
		}
		if filter.MinPrice != nil && *price < *filter.MinPrice {
			return false
		}
		if filter.MaxPrice != nil && *price > *filter.MaxPrice {
			return false
		}
	}
	return true
}

func paginate(properties []models.Property, offset, limit int) []models.Property {
	if offset > 0 {
		if offset >= len(properties) {
			return []models.Property{}
		}
		properties = properties[offset:]
	}
	if limit > 0 && limit < len(properties) {
		properties = properties[:limit]
	}
	return properties
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var p models.Property
	var title, community, district, city, address, status sql.NullString
	var listedPrice, soldPrice, unitPrice, buildArea sql.NullFloat64
	var rooms, floor, yearBuilt sql.NullInt64
	var latitude, longitude sql.NullFloat64
	var listedAt, soldAt sql.NullTime
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&title,
		&community,
		&district,
		&city,
		&address,
		&status,
		&listedPrice,
		&soldPrice,
		&unitPrice,
		&buildArea,
		&rooms,
		&floor,
		&yearBuilt,
		&latitude,
		&longitude,
		&listedAt,
		&soldAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Title = title.String
	p.Community = community.String
	p.District = district.String
	p.City = city.String
	p.Address = address.String
	p.Status = status.String
	if listedPrice.Valid {
		p.ListedPriceWan = &listedPrice.Float64
	}
	if soldPrice.Valid {
		p.SoldPriceWan = &soldPrice.Float64
	}
	if unitPrice.Valid {
		p.UnitPriceYuan = &unitPrice.Float64
	}
	if buildArea.Valid {
		p.BuildArea = &buildArea.Float64
	}
	if rooms.Valid {
		v := int(rooms.Int64)
		p.Rooms = &v
	}
	if floor.Valid {
		v := int(floor.Int64)
		p.Floor = &v
	}
	if yearBuilt.Valid {
		v := int(yearBuilt.Int64)
		p.YearBuilt = &v
	}
	if latitude.Valid {
		p.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		p.Longitude = &longitude.Float64
	}
	if listedAt.Valid {
		p.ListedAt = &listedAt.Time
	}
	if soldAt.Valid {
		p.SoldAt = &soldAt.Time
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time

	return &p, nil
}

func (d *Database) GetPropertyByID(id int64) (*models.Property, error) {
	row := d.db.QueryRow(`
        SELECT id, title, community, district, city, address, status,
               listed_price, sold_price, unit_price, build_area,
               rooms, floor, year_built, latitude, longitude,
               listed_at, sold_at,
               COALESCE(created_at, CURRENT_TIMESTAMP) as created_at,
               COALESCE(updated_at, CURRENT_TIMESTAMP) as updated_at
        FROM properties
        WHERE id = ?
    `, id)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Database) CreateProperty(p *models.Property) error {
	now := time.Now().UTC()
	result, err := d.db.Exec(`
        INSERT INTO properties (
            title, community, district, city, address, status,
            listed_price, sold_price, unit_price, build_area,
            rooms, floor, year_built, latitude, longitude,
            listed_at, sold_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		p.Title, p.Community, p.District, p.City, p.Address, p.Status,
		p.ListedPriceWan, p.SoldPriceWan, p.UnitPriceYuan, p.BuildArea,
		p.Rooms, p.Floor, p.YearBuilt, p.Latitude, p.Longitude,
		p.ListedAt, p.SoldAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get property ID: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (d *Database) UpdateProperty(p *models.Property) error {
	now := time.Now().UTC()
	result, err := d.db.Exec(`
        UPDATE properties SET
            title = ?, community = ?, district = ?, city = ?, address = ?, status = ?,
            listed_price = ?, sold_price = ?, unit_price = ?, build_area = ?,
            rooms = ?, floor = ?, year_built = ?, latitude = ?, longitude = ?,
            listed_at = ?, sold_at = ?, updated_at = ?
        WHERE id = ?
    `,
		p.Title, p.Community, p.District, p.City, p.Address, p.Status,
		p.ListedPriceWan, p.SoldPriceWan, p.UnitPriceYuan, p.BuildArea,
		p.Rooms, p.Floor, p.YearBuilt, p.Latitude, p.Longitude,
		p.ListedAt, p.SoldAt, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	p.UpdatedAt = now
	return nil
}

func (d *Database) DeleteProperty(id int64) error {
	result, err := d.db.Exec("DELETE FROM properties WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetPropertyStats aggregates listing statistics. Totals and prices are
// computed over normalized statuses and display prices, so a listing with a
// legacy label still lands in the right bucket.
func (d *Database) GetPropertyStats(filter models.PropertyFilter) (*models.PropertyStats, error) {
	filter.Status = ""
	filter.Limit = 0
	filter.Offset = 0
	properties, err := d.GetProperties(filter)
	if err != nil {
		return nil, err
	}

	stats := &models.PropertyStats{TotalProperties: len(properties)}
	var prices []float64
	var unitSum float64
	var unitCount int
	for i := range properties {
		p := &properties[i]
		switch normalize.NormalizeStatus(p.Status) {
		case normalize.StatusForSale:
			stats.TotalForSale++
		case normalize.StatusSold:
			stats.TotalSold++
		}
		if price := normalize.DisplayPriceWan(p); price != nil {
			prices = append(prices, *price)
		}
		if unit := normalize.UnitPriceYuanPerSqm(p); unit != nil {
			unitSum += *unit
			unitCount++
		}
	}

	if len(prices) > 0 {
		var sum float64
		for _, v := range prices {
			sum += v
		}
		stats.AveragePriceWan = sum / float64(len(prices))
		sort.Float64s(prices)
		mid := len(prices) / 2
		if len(prices)%2 == 0 {
			stats.MedianPriceWan = (prices[mid-1] + prices[mid]) / 2
		} else {
			stats.MedianPriceWan = prices[mid]
		}
	}
	if unitCount > 0 {
		stats.AvgUnitPriceYuan = unitSum / float64(unitCount)
	}

	return stats, nil
}

func (d *Database) GetDistrictStats(district string) (*models.DistrictStats, error) {
	properties, err := d.GetProperties(models.PropertyFilter{District: district})
	if err != nil {
		return nil, err
	}

	stats := &models.DistrictStats{District: district, PropertyCount: len(properties)}
	var priceSum, unitSum float64
	var priceCount, unitCount int
	for i := range properties {
		p := &properties[i]
		if price := normalize.DisplayPriceWan(p); price != nil {
			priceSum += *price
			priceCount++
		}
		if unit := normalize.UnitPriceYuanPerSqm(p); unit != nil {
			unitSum += *unit
			unitCount++
		}
	}
	if priceCount > 0 {
		stats.AveragePriceWan = priceSum / float64(priceCount)
	}
	if unitCount > 0 {
		stats.AvgUnitPriceYuan = unitSum / float64(unitCount)
	}

	return stats, nil
}
