package quotas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func size(n int) *int { return &n }

func TestComputeUnlimited(t *testing.T) {
	a := Compute(nil, Usage{Committed: 1000, Carts: 1000})
	assert.True(t, a.Unlimited)
	assert.True(t, a.Sellable(1_000_000))
}

func TestComputeCountsAllDemand(t *testing.T) {
	a := Compute(size(10), Usage{Committed: 4, Carts: 2, WaitingList: 1})
	assert.False(t, a.Unlimited)
	assert.Equal(t, 3, a.Free)
	assert.True(t, a.Sellable(3))
	assert.False(t, a.Sellable(4))
}

func TestComputeNeverNegative(t *testing.T) {
	a := Compute(size(2), Usage{Committed: 5})
	assert.Equal(t, 0, a.Free)
	assert.False(t, a.Sellable(1))
	assert.True(t, a.Sellable(0))
}
