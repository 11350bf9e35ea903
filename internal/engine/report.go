package engine

import (
	"maps"
	"slices"

	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/table"
)

// Counts are the batch-level row tallies.
type Counts struct {
	New             int `json:"new"`
	Updated         int `json:"updated"`
	SkippedOutdated int `json:"skipped_outdated"`
	Unchanged       int `json:"unchanged"`
	Dropped         int `json:"dropped"`
	Filtered        int `json:"filtered"`
	Superseded      int `json:"superseded"`
}

// Processed is New + Updated + SkippedOutdated.
func (c Counts) Processed() int {
	return c.New + c.Updated + c.SkippedOutdated
}

// DateBucket counts accepted rows sharing a recency date. Rows with a
// null recency share a bucket whose Date is Null.
type DateBucket struct {
	Date table.Value
	Rows int
}

// FileStats is the per-file breakdown of a batch.
type FileStats struct {
	Index          int
	Source         string
	OriginalRows   int
	DroppedRows    int
	FilteredRows   int
	SupersededRows int
	AcceptedRows   int
	New            int
	Updated        int
	Skipped        int
	Unchanged      int
	// LatestRecency is the latest date among the file's rows that survived
	// normalization and exclusion, whether or not they were accepted.
	LatestRecency  table.Value
	Dates          []DateBucket
}

// ChangeReport is everything a run learned about a batch.
type ChangeReport struct {
	RunID   string
	BatchID string
	Sources []string

	Counts          Counts
	Purged          int
	BaselineRows    int
	NextRows        int
	Files           []FileStats
	Dates           []DateBucket
	ChangesByColumn map[string]int
	// WhitespaceOnly counts rows whose only differences were whitespace.
	WhitespaceOnly int

	// EarliestRecency and LatestRecency span every incoming row that
	// survived normalization, accepted or not.
	EarliestRecency table.Value
	LatestRecency   table.Value

	Records    []ChangeRecord
	Duplicates []DuplicateGroup
	Dropped    []DroppedRow
}

// ByClass returns the records of one class in arrival order.
func (r *ChangeReport) ByClass(c Class) []ChangeRecord {
	var out []ChangeRecord
	for _, rec := range r.Records {
		if rec.Class == c {
			out = append(out, rec)
		}
	}
	return out
}

// HasChanges reports whether the batch altered the baseline.
func (r *ChangeReport) HasChanges() bool {
	return r.Counts.New+r.Counts.Updated+r.Purged > 0
}

// DateRange labels the recency span of the batch: "no_data" when no row
// carries a date, "YYYY-MM-DD" for a single day, otherwise
// "YYYY-MM-DD~YYYY-MM-DD". Used in report file names.
func DateRange(r *ChangeReport) string {
	if r == nil || table.IsNull(r.EarliestRecency) || table.IsNull(r.LatestRecency) {
		return "no_data"
	}
	first, last := r.EarliestRecency.String(), r.LatestRecency.String()
	if first == last {
		return first
	}
	return first + "~" + last
}

// summarize fills the aggregate sections of rep from the pipeline stages.
func summarize(rep *ChangeReport, files []normalize.File, cands []Candidate, groups []DuplicateGroup, records []ChangeRecord) {
	rep.Files = make([]FileStats, len(files))
	for i, f := range files {
		rep.Files[i] = FileStats{
			Index:         f.Index,
			Source:        f.Source,
			OriginalRows:  f.Original,
			DroppedRows:   len(f.Dropped),
			FilteredRows:  f.Filtered,
			LatestRecency: table.Null{},
		}
		rep.Counts.Dropped += len(f.Dropped)
		rep.Counts.Filtered += f.Filtered
	}

	rep.EarliestRecency, rep.LatestRecency = table.Null{}, table.Null{}
	for _, c := range cands {
		if table.IsNull(c.Recency) {
			continue
		}
		if fs := &rep.Files[c.File]; table.CompareRecency(c.Recency, fs.LatestRecency) > 0 {
			fs.LatestRecency = c.Recency
		}
		if table.IsNull(rep.EarliestRecency) || table.CompareRecency(c.Recency, rep.EarliestRecency) < 0 {
			rep.EarliestRecency = c.Recency
		}
		if table.CompareRecency(c.Recency, rep.LatestRecency) > 0 {
			rep.LatestRecency = c.Recency
		}
	}

	for _, g := range groups {
		for _, v := range g.Versions {
			if v.Winner {
				continue
			}
			rep.Counts.Superseded++
			rep.Files[v.File].SupersededRows++
		}
	}

	batchDates := map[string]*DateBucket{}
	fileDates := make([]map[string]*DateBucket, len(files))
	rep.ChangesByColumn = map[string]int{}

	for _, rec := range records {
		fs := &rep.Files[rec.File]
		switch rec.Class {
		case ClassNew:
			rep.Counts.New++
			fs.New++
		case ClassUpdated:
			rep.Counts.Updated++
			fs.Updated++
			for _, ch := range rec.Changes {
				rep.ChangesByColumn[ch.Field]++
			}
		case ClassUnchanged:
			rep.Counts.Unchanged++
			fs.Unchanged++
		case ClassSkippedOutdated:
			rep.Counts.SkippedOutdated++
			fs.Skipped++
			continue
		}
		if len(rec.Whitespace) > 0 && len(rec.Changes) == 0 {
			rep.WhitespaceOnly++
		}

		fs.AcceptedRows++
		bucket(batchDates, rec.Recency)
		if fileDates[rec.File] == nil {
			fileDates[rec.File] = map[string]*DateBucket{}
		}
		bucket(fileDates[rec.File], rec.Recency)
	}

	rep.Dates = sortedBuckets(batchDates)
	for i := range rep.Files {
		rep.Files[i].Dates = sortedBuckets(fileDates[i])
	}
}

func bucket(m map[string]*DateBucket, v table.Value) {
	k := table.Display(v)
	b, ok := m[k]
	if !ok {
		b = &DateBucket{Date: v}
		if table.IsNull(v) {
			b.Date = table.Null{}
		}
		m[k] = b
	}
	b.Rows++
}

// sortedBuckets orders buckets by date with the null bucket first.
func sortedBuckets(m map[string]*DateBucket) []DateBucket {
	if len(m) == 0 {
		return nil
	}
	out := make([]DateBucket, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, *m[k])
	}
	slices.SortStableFunc(out, func(a, b DateBucket) int {
		return table.CompareRecency(a.Date, b.Date)
	})
	return out
}
