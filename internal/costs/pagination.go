package costs

// PageRequest is a validated 1-indexed page selection. The handler layer
// guarantees Page >= 1 and Limit >= 1 before a request reaches here.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset converts the page selection into the store's offset.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the paging metadata attached to List responses.
type Pagination struct {
	CurrentPage    int   `json:"currentPage"`
	TotalPages     int   `json:"totalPages"`
	TotalRecords   int64 `json:"totalRecords"`
	RecordsPerPage int   `json:"recordsPerPage"`
}

// NewPagination computes page metadata for a total of n matching
// records. A page past the end is not an error; it simply pairs an empty
// row set with correct metadata.
func NewPagination(p PageRequest, n int64) Pagination {
	totalPages := 0
	if n > 0 {
		totalPages = int((n + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		CurrentPage:    p.Page,
		TotalPages:     totalPages,
		TotalRecords:   n,
		RecordsPerPage: p.Limit,
	}
}
