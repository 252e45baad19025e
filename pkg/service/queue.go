// Package service runs logscope as a long-lived process: a durable job
// queue, a bounded worker pool, and an HTTP/WebSocket API in front of
// pkg/process and pkg/report.
package service

import (
	"github.com/joncrlsn/dque"
)

// Job is one queued report request: a target to scan, an optional
// baseline to train against, and the per-job options posted alongside
// it. Fields must stay exported; dque persists jobs with gob.
type Job struct {
	ReportID     string
	Target       string
	Baseline     string
	IsJSON       bool
	IsJobOutput  bool
	MessageField string
	ExcludeGlobs []string
}

func jobBuilder() interface{} {
	return &Job{}
}

// segmentSize bounds how many jobs dque keeps per on-disk segment file.
const segmentSize = 50

// OpenQueue opens (creating if absent) a durable on-disk job queue
// rooted at dirPath.
func OpenQueue(dirPath string) (*dque.DQue, error) {
	q, err := dque.NewOrOpen("logscope-jobs", dirPath, segmentSize, jobBuilder)
	if err != nil {
		return nil, err
	}
	return q, nil
}
