// Package config loads and layers logscope's on-disk configuration.
package config

import (
	"io/ioutil"

	"github.com/c2h5oh/datasize"
	"github.com/imdario/mergo"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the top-level on-disk configuration for logscope.
type Config struct {
	// ListenAddr is the address the HTTP/WebSocket service binds to.
	ListenAddr string `yaml:"listen_addr"`
	// MaxWorkers bounds the number of report jobs run concurrently.
	MaxWorkers int `yaml:"max_workers"`
	// MaxFileSize excludes candidate files larger than this from
	// discovery; zero means unbounded.
	MaxFileSize datasize.ByteSize `yaml:"max_file_size"`
	// ExcludeGlobs are extra doublestar glob patterns layered on top of
	// pkg/excludes.DEFAULT_EXCLUDES.
	ExcludeGlobs []string `yaml:"exclude_globs"`
	// BaselineRoot is the directory pkg/discover walks to find baseline
	// candidates when a report is submitted without an explicit baseline.
	BaselineRoot string `yaml:"baseline_root"`
	// ReportDB is the bbolt database path for persisted reports.
	ReportDB string `yaml:"report_db"`
	// JaegerAgent is the jaeger agent address for tracing, empty to
	// disable tracing.
	JaegerAgent string `yaml:"jaeger_agent"`
}

// Defaults returns the compiled-in baseline configuration.
func Defaults() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8080",
		MaxWorkers:   2,
		ReportDB:     "logscope-reports.db",
		BaselineRoot: ".",
	}
}

// Load reads a YAML file at path and layers it over Defaults(): any
// field the file leaves zero-valued keeps its default, via mergo.
func Load(path string) (Config, error) {
	cfg := Defaults()

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	var fromFile Config
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := mergo.Merge(&fromFile, cfg); err != nil {
		return cfg, errors.Wrap(err, "merging config defaults")
	}
	return fromFile, nil
}

// DecodeJobOptions decodes a free-form map (posted alongside a report
// submission) into a typed JobOptions struct, the way worker.rs's
// per-job config extras are interpreted.
func DecodeJobOptions(extra map[string]interface{}) (JobOptions, error) {
	var opts JobOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts, errors.Wrap(err, "building job options decoder")
	}
	if err := decoder.Decode(extra); err != nil {
		return opts, errors.Wrap(err, "decoding job options")
	}
	return opts, nil
}

// JobOptions are per-job overrides a client may pass when submitting a
// report, distinct from the process-wide Config.
type JobOptions struct {
	IsJSON      bool     `mapstructure:"is_json"`
	IsJobOutput bool     `mapstructure:"is_job_output"`
	MessageField string  `mapstructure:"message_field"`
	ExcludeGlobs []string `mapstructure:"exclude_globs"`
}
