package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketline/backend/internal/models"
)

func TestTransitionTable(t *testing.T) {
	all := []string{
		models.OrderStatusPending,
		models.OrderStatusPaid,
		models.OrderStatusExpired,
		models.OrderStatusCanceled,
		models.OrderStatusRefunded,
	}

	cases := []struct {
		name    string
		check   func(string) error
		allowed map[string]bool
	}{
		{"mark_paid", CanMarkPaid, map[string]bool{
			models.OrderStatusPending: true, models.OrderStatusExpired: true,
		}},
		{"mark_canceled", CanMarkCanceled, map[string]bool{
			models.OrderStatusPending: true, models.OrderStatusExpired: true,
		}},
		{"mark_refunded", CanMarkRefunded, map[string]bool{
			models.OrderStatusPaid: true,
		}},
		{"mark_pending", CanMarkPending, map[string]bool{
			models.OrderStatusPaid: true,
		}},
		{"mark_expired", CanMarkExpired, map[string]bool{
			models.OrderStatusPending: true,
		}},
		{"extend", CanExtend, map[string]bool{
			models.OrderStatusPending: true, models.OrderStatusExpired: true,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, status := range all {
				err := tc.check(status)
				if tc.allowed[status] {
					assert.NoError(t, err, "from %q", status)
				} else {
					var terr ErrInvalidTransition
					require.ErrorAs(t, err, &terr, "from %q", status)
					assert.NotEmpty(t, terr.Message)
				}
			}
		})
	}
}

func TestTransitionMessages(t *testing.T) {
	assert.EqualError(t, CanMarkPaid(models.OrderStatusCanceled), msgNotPendingOrExpired)
	assert.EqualError(t, CanMarkRefunded(models.OrderStatusCanceled), msgNotPaid)
	assert.EqualError(t, CanMarkExpired(models.OrderStatusPaid), msgNotPending)
	assert.EqualError(t, CanExtend(models.OrderStatusPaid), msgExtendNotPossible)
}

func TestQuotaExceededMessage(t *testing.T) {
	err := ErrQuotaExceeded{QuotaName: "Budget Quota"}
	assert.Equal(t,
		`There is not enough quota available on quota "Budget Quota" to perform the operation.`,
		err.Error())
}
