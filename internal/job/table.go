package job

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v2"
)

// Table holds the latest Record of every track in a run. Workers write
// distinct keys concurrently; readers get copies.
type Table struct {
	records *xsync.MapOf[string, Record]
}

func NewTable() *Table {
	return &Table{records: xsync.NewMapOf[Record]()}
}

func (t *Table) Store(rec Record) {
	t.records.Store(rec.TrackID, rec)
}

func (t *Table) Get(trackID string) (Record, bool) {
	return t.records.Load(trackID)
}

func (t *Table) Len() int {
	return t.records.Size()
}

// Records returns every record ordered by track id.
func (t *Table) Records() []Record {
	out := make([]Record, 0, t.records.Size())
	t.records.Range(func(_ string, rec Record) bool {
		out = append(out, rec)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

func (t *Table) Summary() Summary {
	return Summarize(t.Records())
}

// Summarize counts records per status.
func Summarize(records []Record) Summary {
	s := Summary{Counts: make(map[Status]int)}
	for _, rec := range records {
		s.Total++
		s.Counts[rec.Status]++
		if !rec.Status.Terminal() {
			s.Unfinished++
		}
	}
	if s.Total > 0 {
		s.SuccessRatio = float64(s.Counts[StatusSuccess]) / float64(s.Total)
	}
	return s
}
