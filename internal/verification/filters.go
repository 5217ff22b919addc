package verification

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pagination limits for admin listings
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ListFilter narrows an admin listing. Nil fields are not applied.
type ListFilter struct {
	Status   *Status
	UserID   *string // exact match
	Phone    *string // case-insensitive substring
	FullName *string
	CropName *string
	Village  *string
	Taluk    *string
	District *string
	From     *time.Time // inclusive
	To       *time.Time // inclusive
}

// Page is a 1-based page request
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps the page to >= 1 and the limit to 1..MaxPageLimit
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Pagination describes a page of results
type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalRequests   int64 `json:"totalRequests"`
	RequestsPerPage int   `json:"requestsPerPage"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPrevPage     bool  `json:"hasPrevPage"`
}

func newPagination(p Page, total int64) Pagination {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Pagination{
		CurrentPage:     p.Number,
		TotalPages:      pages,
		TotalRequests:   total,
		RequestsPerPage: p.Limit,
		HasNextPage:     p.Number < pages,
		HasPrevPage:     p.Number > 1,
	}
}

// ListResult is one page of an admin listing
type ListResult struct {
	Requests       []RecordView      `json:"requests"`
	Pagination     Pagination        `json:"pagination"`
	AppliedFilters map[string]string `json:"appliedFilters"`
}

// ListQuery carries raw admin query parameters
type ListQuery struct {
	Status   string
	Page     string
	Limit    string
	UserID   string
	Phone    string
	FullName string
	CropName string
	Village  string
	Taluk    string
	District string
	FromDate string
	ToDate   string
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDayUTC(t time.Time) time.Time {
	return startOfDayUTC(t).Add(24*time.Hour - time.Millisecond)
}

// Parse validates the status and builds the filter and page. Unparseable
// dates and page numbers fall back to no filter and the defaults.
func (q ListQuery) Parse() (ListFilter, Page, error) {
	var f ListFilter

	switch status := Status(q.Status); {
	case q.Status == "all":
	case status.Valid():
		f.Status = &status
	default:
		return f, Page{}, validationError("Invalid status. Allowed: pending, approved, rejected, all")
	}

	number, err := strconv.Atoi(strings.TrimSpace(q.Page))
	if err != nil {
		number = 1
	}
	limit, err := strconv.Atoi(strings.TrimSpace(q.Limit))
	if err != nil {
		limit = DefaultPageLimit
	}

	f.UserID = trimmed(q.UserID)
	f.Phone = trimmed(q.Phone)
	f.FullName = trimmed(q.FullName)
	f.CropName = trimmed(q.CropName)
	f.Village = trimmed(q.Village)
	f.Taluk = trimmed(q.Taluk)
	f.District = trimmed(q.District)

	if t, ok := parseDate(strings.TrimSpace(q.FromDate)); ok {
		from := startOfDayUTC(t)
		f.From = &from
	}
	if t, ok := parseDate(strings.TrimSpace(q.ToDate)); ok {
		to := endOfDayUTC(t)
		f.To = &to
	}

	return f, NewPage(number, limit), nil
}

// AppliedFilters echoes the non-empty raw filter parameters
func (q ListQuery) AppliedFilters() map[string]string {
	out := map[string]string{}
	for k, v := range map[string]string{
		"userId":   q.UserID,
		"phone":    q.Phone,
		"fullName": q.FullName,
		"cropName": q.CropName,
		"village":  q.Village,
		"taluk":    q.Taluk,
		"district": q.District,
		"fromDate": q.FromDate,
		"toDate":   q.ToDate,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ListMessage is the response message for a listing
func ListMessage(status string) string {
	if status == "all" || status == "" {
		return "All requests fetched successfully"
	}
	return fmt.Sprintf("%s%s requests fetched successfully", strings.ToUpper(status[:1]), status[1:])
}

func trimmed(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
