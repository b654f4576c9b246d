package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "success", StatusOf(nil))
	assert.Equal(t, "closed", StatusOf(fmt.Errorf("wrap: %w", domain.ErrMarketClosed)))
	assert.Equal(t, "already_claimed", StatusOf(domain.ErrAlreadyClaimed))
	assert.Equal(t, "error", StatusOf(errors.New("boom")))
}

func TestRecordBet(t *testing.T) {
	before := testutil.ToFloat64(StakeVolume.WithLabelValues("yes"))
	RecordBet("yes", 25, nil)
	RecordBet("yes", 10, domain.ErrMarketClosed)
	assert.Equal(t, before+25, testutil.ToFloat64(StakeVolume.WithLabelValues("yes")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(BetsPlaced.WithLabelValues("yes", "closed")), 1.0)
}

func TestRecordClaim(t *testing.T) {
	before := testutil.ToFloat64(PayoutVolume)
	RecordClaim(40, false, nil)
	RecordClaim(5, true, nil)
	RecordClaim(0, false, domain.ErrAlreadyClaimed)
	assert.Equal(t, before+45, testutil.ToFloat64(PayoutVolume))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusOK))
	assert.Equal(t, "4xx", statusClass(http.StatusNotFound))
	assert.Equal(t, "5xx", statusClass(http.StatusBadGateway))
}
