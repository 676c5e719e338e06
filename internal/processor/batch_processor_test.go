package processor

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brickdesk/server/config"
	"brickdesk/server/internal/database"
	"brickdesk/server/internal/models"
	"brickdesk/server/internal/queue"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Import.ProcessorCount = 1
	cfg.Import.MaxRetries = 1
	cfg.Import.RetryDelay = 0
	return cfg
}

func fp(v float64) *float64 { return &v }

func TestBatchProcessor_UpsertsBatch(t *testing.T) {
	db := newTestDB(t)
	logger := logrus.New()
	q := queue.NewImportQueue(10, logger)

	p := NewBatchProcessor(db.ORM(), q, testConfig(), logger)
	p.Start()
	defer p.Stop()
	q.Start()
	defer q.Close()

	batch := []*models.Property{
		{Title: "房源A", Community: "小区一", Address: "路1号", City: "杭州", Status: "在售", ListedPriceWan: fp(500)},
		{Title: "房源B", Community: "小区二", Address: "路2号", City: "杭州", Status: "成交", SoldPriceWan: fp(650)},
	}
	require.NoError(t, q.Push(batch))

	require.Eventually(t, func() bool {
		properties, err := db.GetProperties(models.PropertyFilter{})
		return err == nil && len(properties) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBatchProcessor_ReimportUpdatesInsteadOfDuplicating(t *testing.T) {
	db := newTestDB(t)
	logger := logrus.New()
	q := queue.NewImportQueue(10, logger)

	p := NewBatchProcessor(db.ORM(), q, testConfig(), logger)
	p.Start()
	defer p.Stop()
	q.Start()
	defer q.Close()

	first := []*models.Property{
		{Title: "房源A", Community: "小区一", Address: "路1号", City: "杭州", Status: "在售", ListedPriceWan: fp(500)},
	}
	require.NoError(t, q.Push(first))

	require.Eventually(t, func() bool {
		properties, _ := db.GetProperties(models.PropertyFilter{})
		return len(properties) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Same identity, new status and price.
	second := []*models.Property{
		{Title: "房源A", Community: "小区一", Address: "路1号", City: "杭州", Status: "成交", ListedPriceWan: fp(500), SoldPriceWan: fp(520)},
	}
	require.NoError(t, q.Push(second))

	require.Eventually(t, func() bool {
		properties, _ := db.GetProperties(models.PropertyFilter{})
		if len(properties) != 1 {
			return false
		}
		return properties[0].Status == "成交" && properties[0].SoldPriceWan != nil
	}, 2*time.Second, 20*time.Millisecond)

	properties, err := db.GetProperties(models.PropertyFilter{})
	require.NoError(t, err)
	assert.Len(t, properties, 1)
}
