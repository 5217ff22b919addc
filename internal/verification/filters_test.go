package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQuery_Parse(t *testing.T) {
	f, page, err := ListQuery{
		Status:   "pending",
		Page:     "2",
		Limit:    "25",
		UserID:   " u1 ",
		Phone:    "98765",
		District: "kol",
		FromDate: "2025-03-01",
		ToDate:   "2025-03-31T15:00:00Z",
	}.Parse()
	require.NoError(t, err)

	require.NotNil(t, f.Status)
	assert.Equal(t, StatusPending, *f.Status)
	assert.Equal(t, "u1", *f.UserID)
	assert.Equal(t, "98765", *f.Phone)
	assert.Equal(t, "kol", *f.District)
	assert.Nil(t, f.Village)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 999_000_000, time.UTC), *f.To)
	assert.Equal(t, Page{Number: 2, Limit: 25}, page)
	assert.Equal(t, 25, page.Offset())
}

func TestListQuery_ParseDefaults(t *testing.T) {
	f, page, err := ListQuery{Status: "all", Page: "abc", Limit: "", FromDate: "not-a-date"}.Parse()
	require.NoError(t, err)
	assert.Nil(t, f.Status)
	assert.Nil(t, f.From)
	assert.Equal(t, Page{Number: 1, Limit: DefaultPageLimit}, page)

	_, page, err = ListQuery{Status: "all", Page: "-3", Limit: "1000"}.Parse()
	require.NoError(t, err)
	assert.Equal(t, Page{Number: 1, Limit: MaxPageLimit}, page)

	_, page, err = ListQuery{Status: "all", Limit: "0"}.Parse()
	require.NoError(t, err)
	assert.Equal(t, 1, page.Limit)
}

func TestListQuery_InvalidStatus(t *testing.T) {
	_, _, err := ListQuery{Status: "archived"}.Parse()
	require.Error(t, err)
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Contains(t, err.Error(), "Invalid status. Allowed: pending, approved, rejected, all")
}

func TestListQuery_AppliedFilters(t *testing.T) {
	applied := ListQuery{Status: "all", Phone: "987", ToDate: "2025-03-01"}.AppliedFilters()
	assert.Equal(t, map[string]string{"phone": "987", "toDate": "2025-03-01"}, applied)
}

func TestNewPagination(t *testing.T) {
	p := newPagination(Page{Number: 2, Limit: 10}, 25)
	assert.Equal(t, Pagination{
		CurrentPage:     2,
		TotalPages:      3,
		TotalRequests:   25,
		RequestsPerPage: 10,
		HasNextPage:     true,
		HasPrevPage:     true,
	}, p)

	p = newPagination(Page{Number: 1, Limit: 10}, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNextPage)
	assert.False(t, p.HasPrevPage)
}

func TestListMessage(t *testing.T) {
	assert.Equal(t, "All requests fetched successfully", ListMessage("all"))
	assert.Equal(t, "Pending requests fetched successfully", ListMessage("pending"))
	assert.Equal(t, "Rejected requests fetched successfully", ListMessage("rejected"))
}
