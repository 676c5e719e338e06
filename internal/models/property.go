package models

import "time"

// Property is a listing as stored. Status is the raw label received from the
// data source (Chinese or English); consumers must derive the canonical value
// through the normalize package before using it.
type Property struct {
	ID             int64      `json:"id" gorm:"column:id;primaryKey"`
	Title          string     `json:"title" gorm:"column:title"`
	Community      string     `json:"community" gorm:"column:community"`
	District       string     `json:"district" gorm:"column:district"`
	City           string     `json:"city" gorm:"column:city"`
	Address        string     `json:"address" gorm:"column:address"`
	Status         string     `json:"status" gorm:"column:status"`
	ListedPriceWan *float64   `json:"listed_price" gorm:"column:listed_price"`
	SoldPriceWan   *float64   `json:"sold_price" gorm:"column:sold_price"`
	UnitPriceYuan  *float64   `json:"unit_price" gorm:"column:unit_price"`
	BuildArea      *float64   `json:"build_area" gorm:"column:build_area"`
	Rooms          *int       `json:"rooms" gorm:"column:rooms"`
	Floor          *int       `json:"floor" gorm:"column:floor"`
	YearBuilt      *int       `json:"year_built" gorm:"column:year_built"`
	Latitude       *float64   `json:"latitude" gorm:"column:latitude"`
	Longitude      *float64   `json:"longitude" gorm:"column:longitude"`
	ListedAt       *time.Time `json:"listed_at" gorm:"column:listed_at"`
	SoldAt         *time.Time `json:"sold_at" gorm:"column:sold_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

// PropertyFilter narrows listing queries. Status is matched against the
// canonical enumeration, not the raw label. Region expands to its city list
// before the query runs.
type PropertyFilter struct {
	Status   string   `form:"status"`
	City     string   `form:"city"`
	Cities   []string `form:"-"`
	District string   `form:"district"`
	Region   string   `form:"region"`
	Keyword  string   `form:"keyword"`
	MinPrice *float64 `form:"min_price"`
	MaxPrice *float64 `form:"max_price"`
	Limit    int      `form:"limit"`
	Offset   int      `form:"offset"`
}

type PropertyStats struct {
	TotalProperties  int     `json:"total_properties"`
	TotalForSale     int     `json:"total_for_sale"`
	TotalSold        int     `json:"total_sold"`
	AveragePriceWan  float64 `json:"average_price_wan"`
	MedianPriceWan   float64 `json:"median_price_wan"`
	AvgUnitPriceYuan float64 `json:"avg_unit_price_yuan"`
}

type DistrictStats struct {
	District         string  `json:"district"`
	PropertyCount    int     `json:"property_count"`
	AveragePriceWan  float64 `json:"average_price_wan"`
	AvgUnitPriceYuan float64 `json:"avg_unit_price_yuan"`
}

// Lead is an inquiry captured from the public site and worked by staff.
type Lead struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Message    string    `json:"message"`
	PropertyID *int64    `json:"property_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusClosed    = "closed"
)
