package monitoring

import (
	"time"

	"github.com/isdelr/feedhub/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatUpdater periodically samples host CPU and memory usage into the metrics registry.
type StatUpdater struct {
	interval time.Duration
	sample   func() (cpuPercent, memPercent float64, err error)
	ticker   *time.Ticker
	done     chan struct{}
}

// NewStatUpdater creates a new StatUpdater.
func NewStatUpdater(interval time.Duration) *StatUpdater {
	return &StatUpdater{
		interval: interval,
		sample:   sampleHost,
		done:     make(chan struct{}),
	}
}

// Run starts the periodic updates and blocks until Stop is called.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting host stat updater...")
	su.ticker = time.NewTicker(su.interval)
	defer su.ticker.Stop()

	// Run once immediately on start
	su.update()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping host stat updater.")
			return
		case <-su.ticker.C:
			su.update()
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	close(su.done)
}

func (su *StatUpdater) update() {
	cpuPercent, memPercent, err := su.sample()
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Failed to sample host stats")
		return
	}
	metrics.SetHostStats(cpuPercent, memPercent)
	log.Debug().Float64("cpu", cpuPercent).Float64("memory", memPercent).Msg("StatUpdater: Host stats sampled")
}

func sampleHost() (float64, float64, error) {
	// An interval of zero compares against the previous call.
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return cpuPercent, vm.UsedPercent, nil
}
