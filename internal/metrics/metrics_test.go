package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(bookingCreated.WithLabelValues("success"))
	IncBookingCreated("success")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingCreated.WithLabelValues("success")))

	before = testutil.ToFloat64(slotConflicts.WithLabelValues("insert"))
	IncSlotConflict("insert")
	assert.Equal(t, before+1, testutil.ToFloat64(slotConflicts.WithLabelValues("insert")))

	before = testutil.ToFloat64(lockTimeouts)
	IncLockTimeout()
	assert.Equal(t, before+1, testutil.ToFloat64(lockTimeouts))

	before = testutil.ToFloat64(catalogReloads.WithLabelValues("invalid"))
	IncCatalogReload("invalid")
	assert.Equal(t, before+1, testutil.ToFloat64(catalogReloads.WithLabelValues("invalid")))

	IncStatusTransition("confirmed", "success")
	IncNotifyFailure("amqp")
	IncHTTPRequest("/v1/bookings", "201")
	ObserveCreate(time.Now().Add(-time.Millisecond))
	assert.Equal(t, 1, testutil.CollectAndCount(createDuration))
}
