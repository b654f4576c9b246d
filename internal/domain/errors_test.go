package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("service: get: %w", ErrNotFound)))
	assert.Equal(t, CodeMarketClosed, CodeOf(ErrMarketClosed))
	assert.Equal(t, CodeMarketNotResolved, CodeOf(ErrMarketNotResolved))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestLegacyCode(t *testing.T) {
	assert.Equal(t, CodeMarketClosed, LegacyCode(ErrMarketNotResolved, false))
	assert.Equal(t, CodeMarketClosed, LegacyCode(ErrAlreadyResolved, false))
	assert.Equal(t, CodeNotFound, LegacyCode(ErrNotFound, false))
	assert.Equal(t, CodeMarketClosed, LegacyCode(ErrNotFound, true))
	assert.Equal(t, CodeInsufficientFunds, LegacyCode(ErrInsufficientFunds, true))
}

func TestResultOf(t *testing.T) {
	ok := ResultOf(uint64(3), nil)
	assert.True(t, ok.Success)
	assert.Equal(t, uint64(3), ok.Value)

	failed := ResultOf(uint64(0), ErrNotFound)
	assert.False(t, failed.Success)
	assert.Equal(t, CodeNotFound, failed.Error)
}

func TestMarketStatus(t *testing.T) {
	m := Market{ResolutionTime: 10}
	assert.Equal(t, MarketStatusOpen, m.Status(9))
	assert.Equal(t, MarketStatusClosed, m.Status(10))
	yes := true
	m.Resolved, m.Outcome = true, &yes
	assert.Equal(t, MarketStatusResolved, m.Status(0))
	side, ok := m.WinningSide()
	assert.True(t, ok)
	assert.Equal(t, SideYes, side)
}
