package telemetry

import (
	"strings"
	"sync"
)

type ReportKind int

const (
	REPORT_BROKEN ReportKind = iota
	REPORT_WARNING
	REPORT_DEBUG
	REPORT_COUNT
)

type Report struct {
	Kind   ReportKind
	ID     string
	Params []any
	Count  int64
}

// Recorder keeps every report in memory, it is meant to be used in tests where you
// want to assert that a component reported (or did not report) something.
type Recorder struct {
	lock    *sync.Mutex
	reports *[]Report
}

func NewRecorder() Recorder {
	return Recorder{
		lock:    &sync.Mutex{},
		reports: &[]Report{},
	}
}

func (r Recorder) add(report Report) {
	r.lock.Lock()
	defer r.lock.Unlock()
	*r.reports = append(*r.reports, report)
}

func (r Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: REPORT_BROKEN, ID: id, Params: params})
}

func (r Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: REPORT_WARNING, ID: id, Params: params})
}

func (r Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: REPORT_DEBUG, ID: msg, Params: params})
}

func (r Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: REPORT_COUNT, ID: id, Count: count})
}

// Reports returns a copy of everything recorded so far.
func (r Recorder) Reports() []Report {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]Report, len(*r.reports))
	copy(out, *r.reports)
	return out
}

// Find returns the reports of the given kind whose id ends with `suffix`, scoped
// ids are prefixed with a namespace so matching on the suffix is usually enough.
func (r Recorder) Find(kind ReportKind, suffix string) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Kind == kind && strings.HasSuffix(report.ID, suffix) {
			out = append(out, report)
		}
	}
	return out
}
