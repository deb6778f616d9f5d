package jobs

import (
	"fmt"
	"strconv"
	"strings"
)

// PageRange is a 1-based inclusive page span. A single page N is the range
// N-N.
type PageRange struct {
	Start int
	End   int
}

// Single reports whether the range covers exactly one page.
func (r PageRange) Single() bool {
	return r.Start == r.End
}

// Pages returns the number of pages covered.
func (r PageRange) Pages() int {
	return r.End - r.Start + 1
}

// Label returns the in-archive file name for this range: split_page_N.pdf for
// a single page, pages_A-B.pdf otherwise.
func (r PageRange) Label() string {
	if r.Single() {
		return fmt.Sprintf("split_page_%d.pdf", r.Start)
	}
	return fmt.Sprintf("pages_%d-%d.pdf", r.Start, r.End)
}

// ParsePageRanges parses a comma-separated page-range expression such as
// "1-3,5,8-10". Ranges are 1-based and must ascend within each span. The
// ranges are returned in submission order. Non-numeric input, start < 1, or
// end < start is a fatal input error.
func ParsePageRanges(expr string) ([]PageRange, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("empty page range")
	}

	var ranges []PageRange
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty segment in page range %q", expr)
		}

		var start, end int
		var err error
		if dash := strings.Index(part, "-"); dash >= 0 {
			start, err = strconv.Atoi(strings.TrimSpace(part[:dash]))
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q: non-numeric start", part)
			}
			end, err = strconv.Atoi(strings.TrimSpace(part[dash+1:]))
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q: non-numeric end", part)
			}
		} else {
			start, err = strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q: not a number", part)
			}
			end = start
		}

		if start < 1 {
			return nil, fmt.Errorf("invalid page range %q: pages are 1-based", part)
		}
		if end < start {
			return nil, fmt.Errorf("invalid page range %q: end before start", part)
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges, nil
}
