package rediscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meteosight/imgw-analytics/internal/domain"
)

func TestAggregateKey(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	key := AggregateKey("1465", date, "B00300S", domain.PeriodDay)
	assert.Equal(t, "meteo_stats:1465:2024-06-10:B00300S:day", key)
}

func TestAggregateKey_NormalizesToUTC(t *testing.T) {
	warsaw := time.FixedZone("CEST", 2*60*60)
	// 2024-06-11 01:00 CEST is still 2024-06-10 in UTC.
	date := time.Date(2024, 6, 11, 1, 0, 0, 0, warsaw)
	key := AggregateKey("14", date, "B00702A", domain.PeriodNight)
	assert.Equal(t, "meteo_stats:14:2024-06-10:B00702A:night", key)
}
