package observability

import (
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"streamrelay/observability/logger"
	"streamrelay/observability/metrics"
	"streamrelay/observability/types"
)

type (
	Logger   = types.Logger
	Metrics  = types.Metrics
	Fields   = types.Fields
	Config   = types.Config
	Provider = types.Provider
)

// DefaultProvider hands out one JSON logger and one set of Prometheus
// collectors per component, created on first use.
type DefaultProvider struct {
	config     *Config
	registerer prometheus.Registerer

	mu      sync.Mutex
	loggers map[string]Logger
	metrics map[string]Metrics
}

// NewProvider fills in stdout for a missing LogOutput and a private
// registry for a missing Registerer.
//
//	reg := prometheus.NewRegistry()
//	obs := NewProvider(&Config{ServiceName: "streamrelay", LogLevel: "info", Registerer: reg})
//	obs.Logger("relay").Info(ctx, "relay started", nil)
func NewProvider(config *Config) *DefaultProvider {
	if config.LogOutput == nil {
		config.LogOutput = os.Stdout
	}
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &DefaultProvider{
		config:     config,
		registerer: reg,
		loggers:    map[string]Logger{},
		metrics:    map[string]Metrics{},
	}
}

// Logger returns the component's logger. Its service is
// "<ServiceName>.<component>" and it carries AdditionalFields plus a
// "component" field.
func (p *DefaultProvider) Logger(component string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.loggers[component]; ok {
		return l
	}

	fields := Fields{"component": component}
	for k, v := range p.config.AdditionalFields {
		if k != "component" {
			fields[k] = v
		}
	}

	l := logger.New(p.config.ServiceName+"."+component, p.config.Environment,
		p.config.LogLevel, p.config.LogOutput, fields)
	p.loggers[component] = l
	return l
}

// Metrics returns the component's collectors, registering them on first
// use.
func (p *DefaultProvider) Metrics(component string) Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.metrics[component]; ok {
		return m
	}

	m := metrics.New(metrics.SanitizeName(p.config.ServiceName), metrics.SanitizeName(component), p.registerer)
	p.metrics[component] = m
	return m
}

// Close closes LogOutput unless it is stdout or stderr.
func (p *DefaultProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.config.LogOutput.(io.Closer)
	if !ok || c == os.Stdout || c == os.Stderr {
		return nil
	}
	return c.Close()
}
