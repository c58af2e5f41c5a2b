package logparser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// marker is one position-tagged occurrence of a recognition rule.
type marker struct {
	start      int // byte offset of the match
	end        int // byte offset just past the match
	name       string
	status     Status
	durationMs int64
}

// durationFunc converts a captured elapsed-time string to milliseconds.
type durationFunc func(string) int64

// scanMarkers returns every match of re in content in order of occurrence.
// Group 1 must capture the test name; group 2, when present and parse is
// non-nil, the elapsed time.
func scanMarkers(re *regexp.Regexp, content string, status Status, parse durationFunc) []marker {
	locs := re.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return nil
	}
	markers := make([]marker, 0, len(locs))
	for _, loc := range locs {
		m := marker{
			start:  loc[0],
			end:    loc[1],
			name:   strings.TrimSpace(content[loc[2]:loc[3]]),
			status: status,
		}
		if parse != nil && len(loc) >= 6 && loc[4] >= 0 {
			m.durationMs = parse(content[loc[4]:loc[5]])
		}
		markers = append(markers, m)
	}
	return markers
}

// mergeMarkers combines marker lists into one list ordered by position.
func mergeMarkers(lists ...[]marker) []marker {
	var all []marker
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].start < all[j].start
	})
	return all
}

// completionIndex groups completion markers by name, each group ordered by
// position, and hands every marker out at most once.
type completionIndex struct {
	byName   map[string][]int // indexes into markers
	markers  []marker
	consumed []bool
}

func newCompletionIndex(markers []marker) *completionIndex {
	idx := &completionIndex{
		byName:   make(map[string][]int),
		markers:  markers,
		consumed: make([]bool, len(markers)),
	}
	for i, m := range markers {
		idx.byName[m.name] = append(idx.byName[m.name], i)
	}
	return idx
}

// claim returns the first unconsumed completion named name that starts after
// pos, marking it consumed.
func (c *completionIndex) claim(name string, pos int) (marker, bool) {
	list := c.byName[name]
	i := sort.Search(len(list), func(i int) bool {
		return c.markers[list[i]].start > pos
	})
	for ; i < len(list); i++ {
		if !c.consumed[list[i]] {
			c.consumed[list[i]] = true
			return c.markers[list[i]], true
		}
	}
	return marker{}, false
}

// parseMillis parses an integer millisecond count. Invalid input yields 0.
func parseMillis(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseSeconds converts fractional seconds to whole milliseconds, truncating.
// Invalid input yields 0.
func parseSeconds(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f * 1000)
}

// lineEnd returns the offset of the newline ending the line containing pos,
// or len(s) for the last line.
func lineEnd(s string, pos int) int {
	if pos >= len(s) {
		return len(s)
	}
	if i := strings.IndexByte(s[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(s)
}

// truncate cuts s to at most MaxErrorLogLen characters without splitting a
// UTF-8 sequence.
func truncate(s string) string {
	if len(s) <= MaxErrorLogLen {
		return s
	}
	count := 0
	for i := range s {
		if count == MaxErrorLogLen {
			return s[:i]
		}
		count++
	}
	return s
}
