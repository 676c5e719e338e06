package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brickdesk/server/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())
	return db
}

func fptr(v float64) *float64 { return &v }

func seedMixedListings(t *testing.T, db *Database) {
	t.Helper()
	listings := []models.Property{
		{Title: "翠苑三区 两室", Community: "翠苑三区", District: "西湖", City: "杭州", Status: "在售", ListedPriceWan: fptr(500), BuildArea: fptr(89)},
		{Title: "滨江一品 三房", Community: "滨江一品", District: "滨江", City: "杭州", Status: "已成交", ListedPriceWan: fptr(620), SoldPriceWan: fptr(650), BuildArea: fptr(100)},
		{Title: "老城厢小户", Community: "老城厢", District: "黄浦", City: "上海", Status: "SOLD", SoldPriceWan: fptr(380), BuildArea: fptr(55)},
		{Title: "下架房源", Community: "翠苑三区", District: "西湖", City: "杭州", Status: "已下架", ListedPriceWan: fptr(470)},
	}
	for i := range listings {
		require.NoError(t, db.CreateProperty(&listings[i]))
	}
}

func TestGetProperties_StatusFilterAcrossRawLabels(t *testing.T) {
	db := newTestDB(t)
	seedMixedListings(t, db)

	sold, err := db.GetProperties(models.PropertyFilter{Status: "SOLD"})
	require.NoError(t, err)
	require.Len(t, sold, 2, "Chinese and English labels both normalize to SOLD")

	forSale, err := db.GetProperties(models.PropertyFilter{Status: "for_sale"})
	require.NoError(t, err)
	require.Len(t, forSale, 1, "filter value is case-insensitive")
	assert.Equal(t, "在售", forSale[0].Status)
}

func TestGetProperties_CityAndKeyword(t *testing.T) {
	db := newTestDB(t)
	seedMixedListings(t, db)

	hangzhou, err := db.GetProperties(models.PropertyFilter{City: "杭州"})
	require.NoError(t, err)
	assert.Len(t, hangzhou, 3)

	multi, err := db.GetProperties(models.PropertyFilter{Cities: []string{"杭州", "上海"}})
	require.NoError(t, err)
	assert.Len(t, multi, 4)

	byKeyword, err := db.GetProperties(models.PropertyFilter{Keyword: "翠苑"})
	require.NoError(t, err)
	assert.Len(t, byKeyword, 2)
}

func TestGetProperties_PriceRangeUsesDisplayPrice(t *testing.T) {
	db := newTestDB(t)
	seedMixedListings(t, db)

	// 滨江一品 displays its sold price 650, not the listed 620.
	got, err := db.GetProperties(models.PropertyFilter{MinPrice: fptr(640)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "滨江一品 三房", got[0].Title)

	got, err = db.GetProperties(models.PropertyFilter{MinPrice: fptr(600), MaxPrice: fptr(640)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetProperties_Pagination(t *testing.T) {
	db := newTestDB(t)
	seedMixedListings(t, db)

	page, err := db.GetProperties(models.PropertyFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = db.GetProperties(models.PropertyFilter{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	page, err = db.GetProperties(models.PropertyFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestUpdateAndDeleteProperty(t *testing.T) {
	db := newTestDB(t)
	p := models.Property{Title: "待改价房源", Status: "在售", ListedPriceWan: fptr(300)}
	require.NoError(t, db.CreateProperty(&p))

	p.ListedPriceWan = fptr(280)
	require.NoError(t, db.UpdateProperty(&p))

	got, err := db.GetPropertyByID(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 280, *got.ListedPriceWan, 0.001)

	require.NoError(t, db.DeleteProperty(p.ID))
	got, err = db.GetPropertyByID(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, db.DeleteProperty(p.ID), sql.ErrNoRows)
	assert.ErrorIs(t, db.UpdateProperty(&p), sql.ErrNoRows)
}

func TestGetPropertyStats_NormalizedBuckets(t *testing.T) {
	db := newTestDB(t)
	seedMixedListings(t, db)

	stats, err := db.GetPropertyStats(models.PropertyFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalProperties)
	assert.Equal(t, 1, stats.TotalForSale)
	assert.Equal(t, 2, stats.TotalSold)

	// Display prices: 500, 650, 380, 470.
	assert.InDelta(t, 500, stats.AveragePriceWan, 0.001)
	assert.InDelta(t, 485, stats.MedianPriceWan, 0.001)
}

func TestGetDistrictStats(t *testing.T) {
	db := newTestDB(t)
	seedMixedListings(t, db)

	stats, err := db.GetDistrictStats("西湖")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PropertyCount)
	assert.InDelta(t, 485, stats.AveragePriceWan, 0.001)
}

func TestLeadLifecycle(t *testing.T) {
	db := newTestDB(t)

	lead := models.Lead{Name: "王先生", Phone: "13800000000", Message: "想约看房"}
	require.NoError(t, db.CreateLead(&lead))
	assert.NotZero(t, lead.ID)
	assert.Equal(t, models.LeadStatusNew, lead.Status)

	require.NoError(t, db.UpdateLeadStatus(lead.ID, models.LeadStatusContacted))

	contacted, err := db.GetLeads(models.LeadStatusContacted, 10)
	require.NoError(t, err)
	require.Len(t, contacted, 1)
	assert.Equal(t, "王先生", contacted[0].Name)

	none, err := db.GetLeads(models.LeadStatusClosed, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.ErrorIs(t, db.UpdateLeadStatus(9999, models.LeadStatusClosed), sql.ErrNoRows)
}
