package services

import (
	"strings"

	"luckydraw/internal/models"
)

// DefaultPageSize is the number of history rows per page.
const DefaultPageSize = 5

// Paginate splits records into consecutive pages of at most pageSize,
// preserving order. An empty input yields no pages.
func Paginate(records []models.WinnerRecord, pageSize int) [][]models.WinnerRecord {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := make([][]models.WinnerRecord, 0, (len(records)+pageSize-1)/pageSize)
	for i := 0; i < len(records); i += pageSize {
		end := min(i+pageSize, len(records))
		pages = append(pages, records[i:end:end])
	}
	return pages
}

// Filter keeps the records whose number, zero-padded to width, contains
// query. A blank query keeps everything.
func Filter(records []models.WinnerRecord, query string, width int) []models.WinnerRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}
	filtered := make([]models.WinnerRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(models.PadNumber(r.Number, width), query) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// HistoryView is what the presentation layer renders for the history panel.
type HistoryView struct {
	Page        []models.WinnerRecord `json:"page"`
	CurrentPage int                   `json:"currentPage"`
	TotalPages  int                   `json:"totalPages"`
	TotalData   int                   `json:"totalData"`
	StartIndex  int                   `json:"startIndex"`
	EndIndex    int                   `json:"endIndex"`
	PageSize    int                   `json:"pageSize"`
	IsSearching bool                  `json:"isSearching"`
	Query       string                `json:"query"`
}

// Paginator keeps the derived pages and the active page for a record set.
// It never mutates the records it is given.
type Paginator struct {
	pageSize int
	width    int
	records  []models.WinnerRecord
	query    string
	pages    [][]models.WinnerRecord
	total    int
	current  int
}

// NewPaginator creates a paginator with the given page size.
func NewPaginator(pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{pageSize: pageSize, width: 1}
}

// SetRecords replaces the record set and display width, keeping the active
// filter. The active page is clamped to the new page count.
func (p *Paginator) SetRecords(records []models.WinnerRecord, width int) {
	p.records = records
	p.width = width
	p.recompute()
	p.clamp()
}

// Search applies a filter and moves to the first page.
func (p *Paginator) Search(query string) {
	p.query = strings.TrimSpace(query)
	p.current = 0
	p.recompute()
}

// ClearSearch removes the filter and moves to the first page.
func (p *Paginator) ClearSearch() {
	p.Search("")
}

// NextPage advances one page; at the last page it does nothing.
func (p *Paginator) NextPage() {
	if p.current < len(p.pages)-1 {
		p.current++
	}
}

// PreviousPage goes back one page; at the first page it does nothing.
func (p *Paginator) PreviousPage() {
	if p.current > 0 {
		p.current--
	}
}

// GoTo jumps to page, clamped to the valid range.
func (p *Paginator) GoTo(page int) {
	p.current = page
	p.clamp()
}

// View renders the active page.
func (p *Paginator) View() HistoryView {
	v := HistoryView{
		Page:        []models.WinnerRecord{},
		CurrentPage: p.current,
		TotalPages:  len(p.pages),
		TotalData:   p.total,
		StartIndex:  p.current * p.pageSize,
		PageSize:    p.pageSize,
		IsSearching: p.query != "",
		Query:       p.query,
	}
	if p.current < len(p.pages) {
		v.Page = append(v.Page, p.pages[p.current]...)
	}
	v.EndIndex = v.StartIndex + len(v.Page)
	return v
}

func (p *Paginator) recompute() {
	filtered := Filter(p.records, p.query, p.width)
	p.total = len(filtered)
	p.pages = Paginate(filtered, p.pageSize)
}

func (p *Paginator) clamp() {
	if p.current > len(p.pages)-1 {
		p.current = len(p.pages) - 1
	}
	if p.current < 0 {
		p.current = 0
	}
}
