package task

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"
)

// Diagnostics is a point in time view of a task's timing.  Period is
// zero for tasks that are not periodic.
type Diagnostics struct {
	ThreadID int
	Name     string
	Priority int
	Period   time.Duration

	LastCPU   time.Duration
	WorstCPU  time.Duration
	LastWall  time.Duration
	WorstWall time.Duration

	DeadlineMisses uint64
	Iterations     uint64

	// CPUUsage is the worst case CPU time as a percentage of the
	// period.
	CPUUsage float64

	// Overrun is set when the worst wall time exceeded the period.
	Overrun bool

	Started  bool
	Shutdown bool

	// Foreign marks threads that were registered by id rather than
	// run by this package.  They carry no timing.
	Foreign bool
}

type source interface {
	Diagnostics() Diagnostics
	ResetDiagnostics()
}

// Registry tracks every task constructed against it, in construction
// order.  Entries are never removed; a stopped task keeps reporting
// its last diagnostics for as long as the registry lives.
type Registry struct {
	mu      sync.Mutex
	entries []source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) register(s source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

// RegisterThread adds a thread that is not managed by this package,
// usually the main thread, so that it shows up in reports.
func (r *Registry) RegisterThread(name string, tid, priority int) {
	r.register(&foreign{tid: tid, name: name, priority: priority})
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the diagnostics of every entry.
func (r *Registry) Snapshot() []Diagnostics {
	r.mu.Lock()
	entries := append([]source(nil), r.entries...)
	r.mu.Unlock()

	out := make([]Diagnostics, len(entries))
	for i, e := range entries {
		out[i] = e.Diagnostics()
	}
	return out
}

// ResetAll zeroes the timing of every entry.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	entries := append([]source(nil), r.entries...)
	r.mu.Unlock()

	for _, e := range entries {
		e.ResetDiagnostics()
	}
}

// TotalCPU sums the CPU usage of every periodic entry.
func (r *Registry) TotalCPU() float64 {
	return totalCPU(r.Snapshot())
}

func totalCPU(ds []Diagnostics) float64 {
	var total float64
	for _, d := range ds {
		total += d.CPUUsage
	}
	return total
}

// Report writes a table of every entry followed by the total CPU
// usage.  Worst case wall times that exceeded the period are flagged
// with "**".
func (r *Registry) Report(w io.Writer) error {
	ds := r.Snapshot()

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Thread\tTask\tPrio.\tperiod(us)\tLast Execution(us)\tWCET(us)\tLast Wall Time(us)\tWCWT(us)\tCPU Usage\tMisses")
	for _, d := range ds {
		if d.Foreign || d.Period == 0 {
			fmt.Fprintf(tw, "%d\t%s\t%d\t-\t-\t-\t-\t-\t-\t-\n", d.ThreadID, d.Name, d.Priority)
			continue
		}
		marker := ""
		if d.Overrun {
			marker = "**"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d%s\t%.2f%%\t%d\n",
			d.ThreadID, d.Name, d.Priority,
			d.Period.Microseconds(),
			d.LastCPU.Microseconds(), d.WorstCPU.Microseconds(),
			d.LastWall.Microseconds(), d.WorstWall.Microseconds(), marker,
			d.CPUUsage, d.DeadlineMisses,
		)
	}
	fmt.Fprintf(tw, "\nTotal CPU Usage\t%.2f%%\n", totalCPU(ds))
	return tw.Flush()
}

type foreign struct {
	tid      int
	name     string
	priority int
}

func (f *foreign) Diagnostics() Diagnostics {
	return Diagnostics{
		ThreadID: f.tid,
		Name:     f.name,
		Priority: f.priority,
		Started:  true,
		Foreign:  true,
	}
}

func (f *foreign) ResetDiagnostics() {}
