package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/internal/eventbus"
)

// ringCapacity holds ~10s of history at the 10ms monitoring cadence.
const ringCapacity = 1000

// Controller detects disturbances inside a short rolling window and injects
// prioritized, time-bounded corrections on top of the pipeline's decisions.
type Controller struct {
	mu     sync.Mutex
	ring   *ringBuffer
	active map[string]Correction

	clock func() time.Time
	log   logger.Logger
	bus   eventbus.EventBus
}

// New creates a real-time controller.
func New(log logger.Logger, bus eventbus.EventBus) *Controller {
	if log == nil {
		log = logger.Nop{}
	}
	return &Controller{
		ring:   newRingBuffer(ringCapacity),
		active: make(map[string]Correction),
		clock:  time.Now,
		log:    log,
		bus:    bus,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Controller) SetClock(clock func() time.Time) {
	c.mu.Lock()
	c.clock = clock
	c.mu.Unlock()
}

// Observe appends one monitoring sample to the rolling buffer. The scheduler
// calls this on every 10ms tick; expired corrections are purged on the same
// tick so expiry does not depend on new pipeline samples.
func (c *Controller) Observe(in model.Inputs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	c.ring.push(sampleFrom(in, now))
	c.purgeExpiredLocked(now)
}

// BufferLen reports how many monitoring samples are currently retained.
func (c *Controller) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ring.len()
}

// ApplyCorrections detects disturbances against the monitoring window,
// generates corrections, merges them with the still-active set and applies
// everything in strictly descending priority order. A higher-priority
// correction's write is never overwritten by a lower-priority one targeting
// the same field.
func (c *Controller) ApplyCorrections(in model.Inputs, out model.Outputs) model.Outputs {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	c.purgeExpiredLocked(now)

	for _, d := range c.detect() {
		for _, corr := range c.corrections(d, in, out, now) {
			c.active[corr.ID] = corr
			c.log.Debugw("correction created", map[string]any{
				"type":     string(corr.Type),
				"target":   corr.Target,
				"priority": corr.Priority,
			})
			if c.bus != nil {
				c.bus.Publish(events.CorrectionEvent{
					CorrectionID: corr.ID,
					Type:         string(corr.Type),
					Target:       corr.Target,
					Action:       "created",
					Time:         now,
				})
			}
		}
	}
	if len(c.active) == 0 {
		return out
	}

	merged := make([]Correction, 0, len(c.active))
	for _, corr := range c.active {
		merged = append(merged, corr)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority > merged[j].Priority
		}
		return merged[i].ID < merged[j].ID
	})

	next := out.Clone()
	written := make(map[string]bool, len(merged))
	for _, corr := range merged {
		key := corr.TargetKind + ":" + corr.Target
		if written[key] {
			continue
		}
		if c.applyOne(corr, &next) {
			written[key] = true
		}
	}
	return next
}

// applyOne writes a single correction into the outputs. Returns false when
// the correction has no numeric effect so it does not shadow lower-priority
// writes to the same target.
func (c *Controller) applyOne(corr Correction, out *model.Outputs) bool {
	switch corr.TargetKind {
	case "source":
		sc, ok := out.SourceControls[corr.Target]
		if !ok {
			return false
		}
		if corr.Type == CorrectionVoltageRegulation {
			if corr.Note != "" {
				out.Warnings = append(out.Warnings, corr.Note)
			}
			return false
		}
		sc.PowerSetpointW = corr.CorrectedValue
		if corr.Note == "max_efficiency" {
			sc.Mode = model.SourceModeMaxEfficiency
		}
		out.SourceControls[corr.Target] = sc
		return true
	case "load":
		lc, ok := out.LoadControls[corr.Target]
		if !ok {
			return false
		}
		lc.AllocatedPowerW = corr.CorrectedValue
		if corr.CorrectedValue == 0 {
			lc.EnableLoad = false
		}
		out.LoadControls[corr.Target] = lc
		return true
	}
	return false
}

// ActiveCorrections returns the corrections that have not yet expired.
func (c *Controller) ActiveCorrections() []Correction {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked(c.clock())
	res := make([]Correction, 0, len(c.active))
	for _, corr := range c.active {
		res = append(res, corr)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Inject adds a correction directly to the active set. Used by the emergency
// path and by tests.
func (c *Controller) Inject(corr Correction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if corr.ID == "" {
		return
	}
	if corr.Created.IsZero() {
		corr.Created = c.clock()
	}
	c.active[corr.ID] = corr
}

func (c *Controller) purgeExpiredLocked(now time.Time) {
	for id, corr := range c.active {
		if corr.Expired(now) {
			delete(c.active, id)
			if c.bus != nil {
				c.bus.Publish(events.CorrectionEvent{
					CorrectionID: id,
					Type:         string(corr.Type),
					Target:       corr.Target,
					Action:       "expired",
					Time:         now,
				})
			}
		}
	}
}
