package feed

import (
	"fmt"
	"time"
)

// CandidatePaths returns the remote paths worth probing for one sailing, in
// order.  The feed's convention is YEAR/MONTH/LINE/SHIP/<file-code>.json
// keyed by sailing date, but sailings near month boundaries show up under
// the previous or next day's month directory often enough that a single
// canonical path cannot be assumed.  Callers try each path and take the
// first hit; exhausting the list means the file is reported not-found.
func CandidatePaths(lineExternalID, shipExternalID uint64, fileCode string, sailDate time.Time) []string {
	dates := []time.Time{
		sailDate,
		sailDate.AddDate(0, 0, -1),
		sailDate.AddDate(0, 0, 1),
	}
	seen := make(map[string]bool, len(dates))
	paths := make([]string, 0, len(dates))
	for _, d := range dates {
		p := fmt.Sprintf("%d/%02d/%d/%d/%s.json",
			d.Year(), int(d.Month()), lineExternalID, shipExternalID, fileCode)
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}
