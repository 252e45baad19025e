package service

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/go-kit/kit/log/level"
	"github.com/joncrlsn/dque"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/famarks/logscope/internal/util"
	"github.com/famarks/logscope/pkg/dedup"
	"github.com/famarks/logscope/pkg/discover"
	"github.com/famarks/logscope/pkg/excludes"
	"github.com/famarks/logscope/pkg/fetch"
	"github.com/famarks/logscope/pkg/index"
	"github.com/famarks/logscope/pkg/process"
	"github.com/famarks/logscope/pkg/report"
)

// Workers runs queued Jobs with a bounded amount of concurrency,
// mirroring worker.rs's MAX_LOGJUICER_PROCESS-bounded loop.
type Workers struct {
	queue      *dque.DQue
	store      *report.Store
	maxWorkers int

	// discoverer, discoverRoot, maxFileSize, and baseExcludeGlobs back
	// automatic baseline discovery (content_discover_baselines in
	// worker.rs) for jobs submitted without an explicit baseline.
	discoverer       *discover.Discoverer
	discoverRoot     string
	maxFileSize      datasize.ByteSize
	baseExcludeGlobs []string

	monitorsMu sync.Mutex
	monitors   map[string]*ProcessMonitor

	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkers returns a pool draining queue into store with at most
// maxWorkers concurrent jobs. discoverRoot is the directory walked to
// find baseline candidates when a job omits its baseline; maxFileSize
// (zero means unbounded) and excludeGlobs filter those candidates,
// layered on top of pkg/excludes.DEFAULT_EXCLUDES.
func NewWorkers(queue *dque.DQue, store *report.Store, maxWorkers int, discoverRoot string, maxFileSize datasize.ByteSize, excludeGlobs []string) (*Workers, error) {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	matcher, err := excludes.New(excludeGlobs)
	if err != nil {
		return nil, errors.Wrap(err, "building baseline discovery excludes")
	}
	disc, err := discover.New(matcher)
	if err != nil {
		return nil, errors.Wrap(err, "building baseline discoverer")
	}
	return &Workers{
		queue:            queue,
		store:            store,
		maxWorkers:       maxWorkers,
		discoverer:       disc,
		discoverRoot:     discoverRoot,
		maxFileSize:      maxFileSize,
		baseExcludeGlobs: excludeGlobs,
		monitors:         make(map[string]*ProcessMonitor),
	}, nil
}

// MonitorFor returns (creating if absent) the ProcessMonitor for a
// report ID, so an HTTP handler can subscribe before the job starts
// running.
func (w *Workers) MonitorFor(reportID string) *ProcessMonitor {
	w.monitorsMu.Lock()
	defer w.monitorsMu.Unlock()
	m, ok := w.monitors[reportID]
	if !ok {
		m = NewProcessMonitor()
		w.monitors[reportID] = m
	}
	return m
}

// Submit enqueues job for processing and returns once it's durably
// queued (not once it's run).
func (w *Workers) Submit(job Job) error {
	if err := w.queue.Enqueue(job); err != nil {
		return errors.Wrap(err, "enqueueing job")
	}
	w.MonitorFor(job.ReportID).Publish(Event{ReportID: job.ReportID, Status: StatusQueued})
	return nil
}

// Stats is a snapshot of the pool's atomic counters, exposed via the
// /stats endpoint.
type Stats struct {
	Running   int64
	Completed int64
	Failed    int64
}

// Snapshot returns the pool's current counters.
func (w *Workers) Snapshot() Stats {
	return Stats{
		Running:   w.running.Load(),
		Completed: w.completed.Load(),
		Failed:    w.failed.Load(),
	}
}

// Run drains the queue forever, running up to maxWorkers jobs at once.
// It returns only when stop is closed.
func (w *Workers) Run(stop <-chan struct{}) {
	sem := make(chan struct{}, w.maxWorkers)
	var wg sync.WaitGroup

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}

		item, err := w.queue.DequeueBlock()
		if err != nil {
			level.Error(util.Logger).Log("msg", "dequeue failed", "err", err)
			continue
		}
		job, ok := item.(*Job)
		if !ok {
			level.Error(util.Logger).Log("msg", "unexpected queue item type")
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		w.running.Inc()
		go func(j Job) {
			defer func() {
				<-sem
				wg.Done()
				w.running.Dec()
			}()
			w.runOne(j)
		}(*job)
	}
}

func (w *Workers) runOne(job Job) {
	monitor := w.MonitorFor(job.ReportID)
	monitor.Publish(Event{ReportID: job.ReportID, Status: StatusRunning})

	r, err := w.process(job, monitor)
	if err != nil {
		w.failed.Inc()
		level.Error(util.Logger).Log("msg", "job failed", "report_id", job.ReportID, "err", err)
		monitor.Publish(Event{ReportID: job.ReportID, Status: StatusFailed, Error: err.Error()})
		return
	}

	if err := w.store.Put(r); err != nil {
		w.failed.Inc()
		level.Error(util.Logger).Log("msg", "persisting report failed", "report_id", job.ReportID, "err", err)
		monitor.Publish(Event{ReportID: job.ReportID, Status: StatusFailed, Error: err.Error()})
		return
	}

	w.completed.Inc()
	monitor.Publish(Event{
		ReportID:       job.ReportID,
		Status:         StatusCompleted,
		LinesRead:      r.LineCount,
		AnomaliesSoFar: len(r.Anomalies),
	})
}

func (w *Workers) process(job Job, monitor *ProcessMonitor) (*report.Report, error) {
	baselineReader, closeBaseline, err := w.resolveBaseline(job)
	if err != nil {
		return nil, errors.Wrap(err, "opening baseline")
	}
	defer closeBaseline()

	idx, err := process.TrainSingle(index.NewFeaturesMatrixBuilder(), job.IsJSON, baselineReader)
	if err != nil {
		return nil, errors.Wrap(err, "training baseline")
	}

	targetReader, closeTarget, err := openSource(job.Target)
	if err != nil {
		return nil, errors.Wrap(err, "opening target")
	}
	defer closeTarget()

	cp := process.NewChunkProcessorWithField(targetReader, idx, job.IsJSON, job.IsJobOutput, dedup.New(), job.MessageField)

	var anomalies []process.AnomalyContext
	for {
		a, ok, err := cp.Next()
		if err != nil {
			return nil, errors.Wrap(err, "processing target")
		}
		if !ok {
			break
		}
		anomalies = append(anomalies, *a)
		monitor.Publish(Event{
			ReportID:       job.ReportID,
			Status:         StatusRunning,
			LinesRead:      cp.LineCount,
			AnomaliesSoFar: len(anomalies),
		})
	}

	return &report.Report{
		ID:        job.ReportID,
		Target:    job.Target,
		Baseline:  job.Baseline,
		LineCount: cp.LineCount,
		ByteCount: cp.ByteCount,
		Anomalies: anomalies,
	}, nil
}

// resolveBaseline opens job.Baseline if the client supplied one.
// Otherwise it plays the content_discover_baselines role from
// worker.rs: it walks w.discoverRoot for candidate files, filters them
// by w.maxFileSize, and concatenates the survivors into a single
// reader so TrainSingle sees every discovered file as one baseline.
func (w *Workers) resolveBaseline(job Job) (io.Reader, func(), error) {
	if job.Baseline != "" {
		return openSource(job.Baseline)
	}

	disc := w.discoverer
	if len(job.ExcludeGlobs) > 0 {
		matcher, err := excludes.New(append(append([]string{}, w.baseExcludeGlobs...), job.ExcludeGlobs...))
		if err != nil {
			return nil, func() {}, errors.Wrap(err, "building per-job excludes")
		}
		disc, err = discover.New(matcher)
		if err != nil {
			return nil, func() {}, errors.Wrap(err, "building per-job discoverer")
		}
	}

	candidates, err := disc.Candidates(w.discoverRoot)
	if err != nil {
		return nil, func() {}, errors.Wrapf(err, "discovering baseline candidates under %s", w.discoverRoot)
	}

	var readers []io.Reader
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, path := range candidates {
		if w.maxFileSize > 0 {
			info, statErr := os.Stat(path)
			if statErr != nil || datasize.ByteSize(info.Size()) > w.maxFileSize {
				continue
			}
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			closeAll()
			return nil, func() {}, errors.Wrapf(openErr, "opening discovered baseline %s", path)
		}
		closers = append(closers, func() { f.Close() })
		readers = append(readers, f, strings.NewReader("\n"))
	}

	if len(readers) == 0 {
		return strings.NewReader(""), func() {}, nil
	}
	return io.MultiReader(readers...), closeAll, nil
}

// openSource opens raw as either a URL (fetched over HTTP) or a local
// file path, returning a reader and its closer. An empty raw (an
// omitted baseline) yields an empty reader rather than an error.
func openSource(raw string) (io.Reader, func(), error) {
	if raw == "" {
		return strings.NewReader(""), func() {}, nil
	}
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		client := fetch.NewClient()
		resp, err := fetch.Get(context.Background(), client, raw)
		if err != nil {
			return nil, func() {}, err
		}
		return resp.Body, func() { resp.Body.Close() }, nil
	}

	f, err := os.Open(raw)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { f.Close() }, nil
}
