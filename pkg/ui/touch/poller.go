package touch

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/ui/backend"
)

// SampleFunc receives one sensor reading.
type SampleFunc func(x, y int, ok bool)

// Poller reads a sensor at a fixed interval and forwards each reading.
type Poller struct {
	sensor   backend.Sensor
	interval time.Duration
	clock    clock.WithTicker
	sink     SampleFunc
}

// NewPoller creates a poller that forwards readings to sink.
func NewPoller(s backend.Sensor, interval time.Duration, sink SampleFunc, c clock.WithTicker) *Poller {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &Poller{sensor: s, interval: interval, clock: c, sink: sink}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			x, y, ok := p.sensor.Sample()
			p.sink(x, y, ok)
		}
	}
}
