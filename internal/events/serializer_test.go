package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestValidateSlug(t *testing.T) {
	for _, slug := range []string{"dummy", "30c3", "a-b_c.d", "2026"} {
		assert.Nil(t, validateSlug(slug), slug)
	}
	for _, slug := range []string{"", "django!", "with space", "ümläut"} {
		errs := validateSlug(slug)
		require.NotNil(t, errs, slug)
		assert.Equal(t, []string{msgSlugInvalid}, errs["slug"])
	}
}

func TestValidateDates(t *testing.T) {
	assert.Nil(t, validateDates(ts("2026-12-27T10:00:00Z"), ts("2026-12-28T10:00:00Z"), nil, nil))
	assert.Nil(t, validateDates(nil, nil, nil, nil))

	errs := validateDates(ts("2026-12-27T10:00:00Z"), ts("2026-12-26T10:00:00Z"), nil, nil)
	require.NotNil(t, errs)
	assert.Equal(t, []string{msgDatesInverted}, errs["non_field_errors"])

	errs = validateDates(nil, nil, ts("2026-11-01T00:00:00Z"), ts("2026-10-01T00:00:00Z"))
	require.NotNil(t, errs)
	assert.Equal(t, []string{msgPresaleInverted}, errs["non_field_errors"])
}

func TestValidateLive(t *testing.T) {
	errs := validateLive(LiveReadiness{})
	require.NotNil(t, errs)
	assert.Equal(t, []string{msgLiveNoQuota}, errs["live"])

	errs = validateLive(LiveReadiness{QuotaCount: 1, PaidItemCount: 2})
	require.NotNil(t, errs)
	assert.Equal(t, []string{msgLiveNoPayment}, errs["live"])

	assert.Nil(t, validateLive(LiveReadiness{QuotaCount: 1, PaidItemCount: 2, PaymentEnabled: true}))
	assert.Nil(t, validateLive(LiveReadiness{QuotaCount: 1}))
}

func TestValidatePlugins(t *testing.T) {
	assert.Nil(t, validatePlugins(nil))
	assert.Nil(t, validatePlugins([]string{"ticketline.plugins.banktransfer"}))

	errs := validatePlugins([]string{"ticketline.plugins.nonexistent"})
	require.NotNil(t, errs)
	assert.Contains(t, errs["plugins"].([]string)[0], "nonexistent")
}

func TestSplitJoinModules(t *testing.T) {
	assert.Equal(t, []string{}, splitModules(""))
	assert.Equal(t, []string{"a", "b"}, splitModules("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitModules(" a , b ,"))
	assert.Equal(t, "a,b", joinModules([]string{"a", "b"}))
	assert.Equal(t, "", joinModules(nil))
}
