package service

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/famarks/logscope/pkg/report"
)

func newTestWorkers(t *testing.T) (*Workers, *report.Store) {
	t.Helper()
	dir := t.TempDir()

	queue, err := OpenQueue(filepath.Join(dir, "queue"))
	if err != nil {
		t.Fatalf("OpenQueue failed: %v", err)
	}
	store, err := report.Open(filepath.Join(dir, "reports.db"))
	if err != nil {
		t.Fatalf("report.Open failed: %v", err)
	}
	workers, err := NewWorkers(queue, store, 2, dir, 0, nil)
	if err != nil {
		t.Fatalf("NewWorkers failed: %v", err)
	}
	return workers, store
}

func TestWorkersProcessesSubmittedJob(t *testing.T) {
	dir := t.TempDir()
	baselinePath := filepath.Join(dir, "baseline.log")
	targetPath := filepath.Join(dir, "target.log")
	if err := ioutil.WriteFile(baselinePath, []byte("normal line"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(targetPath, []byte("normal line\nan anomaly shows up"), 0o644); err != nil {
		t.Fatal(err)
	}

	workers, store := newTestWorkers(t)

	monitor := workers.MonitorFor("job-1")
	events := monitor.Subscribe()

	if err := workers.Submit(Job{ReportID: "job-1", Target: targetPath, Baseline: baselinePath}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	stop := make(chan struct{})
	go workers.Run(stop)
	defer close(stop)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Status == StatusCompleted {
				goto done
			}
			if ev.Status == StatusFailed {
				t.Fatalf("job failed: %s", ev.Error)
			}
		case <-deadline:
			t.Fatal("timed out waiting for job completion")
		}
	}
done:

	r, ok, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a persisted report")
	}
	if len(r.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %+v", len(r.Anomalies), r.Anomalies)
	}
}

// TestWorkersDiscoversBaselineWhenOmitted exercises the
// content_discover_baselines path: a job submitted with no Baseline
// should train against whatever resolveBaseline finds under the
// configured discovery root, not against an empty reader.
func TestWorkersDiscoversBaselineWhenOmitted(t *testing.T) {
	dir := t.TempDir()
	baselineDir := filepath.Join(dir, "baselines")
	if err := os.MkdirAll(baselineDir, 0o755); err != nil {
		t.Fatal(err)
	}
	baselinePath := filepath.Join(baselineDir, "a.log")
	targetPath := filepath.Join(dir, "target.log")
	if err := ioutil.WriteFile(baselinePath, []byte("normal line"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(targetPath, []byte("normal line\nan anomaly shows up"), 0o644); err != nil {
		t.Fatal(err)
	}

	queue, err := OpenQueue(filepath.Join(dir, "queue"))
	if err != nil {
		t.Fatalf("OpenQueue failed: %v", err)
	}
	store, err := report.Open(filepath.Join(dir, "reports.db"))
	if err != nil {
		t.Fatalf("report.Open failed: %v", err)
	}
	workers, err := NewWorkers(queue, store, 2, baselineDir, 0, nil)
	if err != nil {
		t.Fatalf("NewWorkers failed: %v", err)
	}

	monitor := workers.MonitorFor("job-2")
	events := monitor.Subscribe()

	if err := workers.Submit(Job{ReportID: "job-2", Target: targetPath}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	stop := make(chan struct{})
	go workers.Run(stop)
	defer close(stop)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Status == StatusCompleted {
				goto done2
			}
			if ev.Status == StatusFailed {
				t.Fatalf("job failed: %s", ev.Error)
			}
		case <-deadline:
			t.Fatal("timed out waiting for job completion")
		}
	}
done2:

	r, ok, err := store.Get("job-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a persisted report")
	}
	if len(r.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly from discovered baseline, got %d: %+v", len(r.Anomalies), r.Anomalies)
	}
}
