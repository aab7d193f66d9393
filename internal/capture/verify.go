package capture

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/jittakal/tiwriter/pkg/record"
)

// IDFunc extracts a record identifier from an entry.
type IDFunc func(record.Entry) (uint64, bool)

// Report summarises a uniqueness check.
type Report struct {
	Records    int64
	Unique     uint64
	Duplicates int64
	// DuplicateIDs holds the first duplicated IDs seen.
	DuplicateIDs []uint64
	// Missing counts IDs in [0, expected) that never appeared. It is only
	// set when an expected count is given.
	Missing    uint64
	Unreadable int64
}

// OK reports whether every expected record appeared exactly once.
func (r Report) OK() bool {
	return r.Duplicates == 0 && r.Missing == 0 && r.Unreadable == 0
}

func (r Report) String() string {
	return fmt.Sprintf("records=%d unique=%d duplicates=%d missing=%d unreadable=%d",
		r.Records, r.Unique, r.Duplicates, r.Missing, r.Unreadable)
}

// maxReportedDuplicates bounds Report.DuplicateIDs on badly broken captures.
const maxReportedDuplicates = 1024

// VerifyUnique checks that every ID appears at most once. When expected is
// positive it also checks that IDs 0..expected-1 are all present.
func VerifyUnique(entries []record.Entry, id IDFunc, expected uint64) Report {
	if id == nil {
		id = record.Entry.ID
	}

	seen := roaring64.New()
	var report Report

	for _, e := range entries {
		report.Records++
		v, ok := id(e)
		if !ok {
			report.Unreadable++
			continue
		}
		if seen.CheckedAdd(v) {
			continue
		}
		report.Duplicates++
		if len(report.DuplicateIDs) < maxReportedDuplicates {
			report.DuplicateIDs = append(report.DuplicateIDs, v)
		}
	}

	report.Unique = seen.GetCardinality()
	if expected > 0 {
		present := seen.Rank(expected - 1)
		report.Missing = expected - present
	}
	return report
}
