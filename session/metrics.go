package session

import (
	"churn/resource"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PusherConfig pushes the process' metrics to a pushgateway when the
// session closes. Batch jobs do not live long enough to be scraped.
type PusherConfig struct {
	Addr     string
	Job      string
	Instance string
	Gatherer prometheus.Gatherer
}

var _ resource.Config = PusherConfig{}

func (c PusherConfig) Materialize() (resource.Resource, error) {
	gatherer := c.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	p := push.New(c.Addr, c.Job).
		Gatherer(gatherer).
		Grouping("instance", c.Instance)
	return pusher{p}, nil
}

type pusher struct {
	p *push.Pusher
}

func (p pusher) Close() error {
	return p.p.Push()
}

func (p pusher) Type() resource.Type {
	return resource.MetricsPusher
}

type traceProvider struct {
	shutdown func() error
}

func (t traceProvider) Close() error {
	return t.shutdown()
}

func (t traceProvider) Type() resource.Type {
	return resource.TraceProvider
}
