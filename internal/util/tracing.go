package util

import (
	"io"

	"github.com/go-kit/kit/log/level"
	opentracing "github.com/opentracing/opentracing-go"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// InitTracing configures a jaeger tracer as the opentracing global tracer.
// serviceName identifies logscope in whatever trace backend is collecting
// spans; an empty agentAddr disables sampling (NeverSample) so running
// without a collector nearby stays cheap.
func InitTracing(serviceName, agentAddr string) (io.Closer, error) {
	sampler := &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 0}
	if agentAddr != "" {
		sampler.Param = 1
	}
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler:     sampler,
		Reporter: &jaegercfg.ReporterConfig{
			LocalAgentHostPort: agentAddr,
			LogSpans:           false,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	level.Info(Logger).Log("msg", "tracing initialized", "service", serviceName, "agent", agentAddr)
	return closer, nil
}
