// Command logscope trains a baseline index over normal log content and
// finds lines in a target stream that don't resemble anything in it.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/kit/log/level"
	"github.com/hpcloud/tail"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/fsnotify.v1"

	"github.com/famarks/logscope/internal/config"
	"github.com/famarks/logscope/internal/util"
	"github.com/famarks/logscope/pkg/dedup"
	"github.com/famarks/logscope/pkg/index"
	"github.com/famarks/logscope/pkg/process"
	"github.com/famarks/logscope/pkg/report"
	"github.com/famarks/logscope/pkg/service"
)

var (
	app     = kingpin.New("logscope", "Streaming log anomaly detector.")
	verbose = app.Flag("verbose", "Enable debug logging.").Short('v').Bool()
	jaeger  = app.Flag("jaeger-agent", "Jaeger agent address for tracing.").String()

	trainCmd       = app.Command("train", "Train an index over baseline content and scan a target.")
	trainBaseline  = trainCmd.Arg("baseline", "Baseline file.").Required().String()
	trainTarget    = trainCmd.Arg("target", "Target file.").Required().String()
	trainJSON      = trainCmd.Flag("json", "Frame input lines as JSON records.").Bool()
	trainJobOutput = trainCmd.Flag("job-output", "Stop at the self-exclusion marker, as for CI job logs.").Bool()

	detectCmd      = app.Command("detect", "Alias of train, scanning target against baseline.")
	detectBaseline = detectCmd.Arg("baseline", "Baseline file.").Required().String()
	detectTarget   = detectCmd.Arg("target", "Target file.").Required().String()

	watchCmd      = app.Command("watch", "Tail a growing target file, reporting anomalies as they appear.")
	watchBaseline = watchCmd.Arg("baseline", "Baseline file.").Required().String()
	watchTarget   = watchCmd.Arg("target", "Target file to tail.").Required().String()

	serveCmd       = app.Command("serve", "Run the HTTP/WebSocket report service.")
	serveConfigPth = serveCmd.Flag("config", "Path to a YAML config file.").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *verbose {
		util.SetLevel("debug")
	}
	if *jaeger != "" {
		closer, err := util.InitTracing("logscope", *jaeger)
		if err != nil {
			level.Error(util.Logger).Log("msg", "tracing init failed", "err", err)
		} else {
			defer closer.Close()
		}
	}

	var err error
	switch command {
	case trainCmd.FullCommand():
		err = runScan(*trainBaseline, *trainTarget, *trainJSON, *trainJobOutput)
	case detectCmd.FullCommand():
		err = runScan(*detectBaseline, *detectTarget, false, false)
	case watchCmd.FullCommand():
		err = runWatch(*watchBaseline, *watchTarget)
	case serveCmd.FullCommand():
		err = runServe(*serveConfigPth, *jaeger)
	}
	if err != nil {
		level.Error(util.Logger).Log("msg", "command failed", "err", err)
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func runScan(baselinePath, targetPath string, isJSON, isJobOutput bool) error {
	baseline, err := os.Open(baselinePath)
	if err != nil {
		return err
	}
	defer baseline.Close()

	idx, err := process.TrainSingle(index.NewFeaturesMatrixBuilder(), isJSON, baseline)
	if err != nil {
		return err
	}

	target, err := os.Open(targetPath)
	if err != nil {
		return err
	}
	defer target.Close()

	cp := process.NewChunkProcessor(target, idx, isJSON, isJobOutput, dedup.New())
	count := 0
	for {
		a, ok, err := cp.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		count++
		printAnomaly(a)
	}

	fmt.Printf("scanned %s lines (%s), found %d anomalies\n",
		humanize.Comma(int64(cp.LineCount)), humanize.Bytes(uint64(cp.ByteCount)), count)
	return nil
}

func printAnomaly(a *process.AnomalyContext) {
	for _, l := range a.Before {
		fmt.Println("  " + l)
	}
	fmt.Println(color.RedString("> %s", a.Anomaly.Line))
	for _, l := range a.After {
		fmt.Println("  " + l)
	}
	fmt.Println()
}

// runWatch feeds lines tailed from a growing file into a ChunkProcessor
// through an io.Pipe, printing anomalies as readAnomalies chunks
// complete. fsnotify guards against the target not existing yet.
func runWatch(baselinePath, targetPath string) error {
	baseline, err := os.Open(baselinePath)
	if err != nil {
		return err
	}
	defer baseline.Close()

	idx, err := process.TrainSingle(index.NewFeaturesMatrixBuilder(), false, baseline)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(targetPath); os.IsNotExist(statErr) {
		watcher, werr := fsnotify.NewWatcher()
		if werr != nil {
			return werr
		}
		defer watcher.Close()
		if werr := watcher.Add(filepath.Dir(targetPath)); werr != nil {
			return werr
		}
		level.Info(util.Logger).Log("msg", "waiting for target file to appear", "target", targetPath)
		for ev := range watcher.Events {
			if ev.Name == targetPath && (ev.Op&fsnotify.Create) != 0 {
				break
			}
		}
	}

	t, err := tail.TailFile(targetPath, tail.Config{Follow: true, ReOpen: true})
	if err != nil {
		return err
	}
	defer t.Stop()

	pr, pw := io.Pipe()
	go func() {
		for line := range t.Lines {
			if line.Err != nil {
				pw.CloseWithError(line.Err)
				return
			}
			io.WriteString(pw, line.Text+"\n")
		}
	}()

	cp := process.NewChunkProcessor(pr, idx, false, false, dedup.New())
	for {
		a, ok, err := cp.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		printAnomaly(a)
	}
}

// runServe starts the long-lived HTTP/WebSocket service. jaegerFlag is
// the --jaeger-agent CLI value; when it's empty, serve falls back to
// cfg.JaegerAgent from the YAML file, since serve is the one
// subcommand that runs long enough for file-based tracing config to
// matter.
func runServe(configPath, jaegerFlag string) error {
	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if jaegerFlag == "" && cfg.JaegerAgent != "" {
		closer, err := util.InitTracing("logscope", cfg.JaegerAgent)
		if err != nil {
			level.Error(util.Logger).Log("msg", "tracing init failed", "err", err)
		} else {
			defer closer.Close()
		}
	}

	queue, err := service.OpenQueue(filepath.Dir(cfg.ReportDB))
	if err != nil {
		return err
	}
	store, err := report.Open(cfg.ReportDB)
	if err != nil {
		return err
	}
	defer store.Close()

	workers, err := service.NewWorkers(queue, store, cfg.MaxWorkers, cfg.BaselineRoot, cfg.MaxFileSize, cfg.ExcludeGlobs)
	if err != nil {
		return err
	}
	stop := make(chan struct{})
	go workers.Run(stop)

	router := service.NewRouter(workers, store)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		close(stop)
		os.Exit(0)
	}()

	level.Info(util.Logger).Log("msg", "serving", "addr", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, router)
}
