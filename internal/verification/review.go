package verification

// ReviewSummary counts the outcome of a photo review
type ReviewSummary struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ReviewResult is returned by a photo review
type ReviewResult struct {
	Record  *Record       `json:"-"`
	Photos  []Photo       `json:"photos"`
	Summary ReviewSummary `json:"summary"`
}

// ApplyPhotoReview returns a new photo list where every photo in approved is
// approved and every other photo is rejected. Unknown ids are ignored.
func ApplyPhotoReview(photos []Photo, approved []string) []Photo {
	set := make(map[string]struct{}, len(approved))
	for _, id := range approved {
		set[id] = struct{}{}
	}

	out := make([]Photo, len(photos))
	for i, p := range photos {
		out[i] = p
		if _, ok := set[p.ID]; ok {
			out[i].Status = PhotoApproved
		} else {
			out[i].Status = PhotoRejected
		}
	}
	return out
}

func summarizeReview(photos []Photo) ReviewSummary {
	s := SummarizePhotos(photos)
	return ReviewSummary{Total: s.Total, Approved: s.Approved, Rejected: s.Rejected}
}
