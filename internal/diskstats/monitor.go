package diskstats

// Monitor samples a fixed set of devices before and after a run.
type Monitor struct {
	sampler *Sampler
	devices []string
	before  []Sample
}

// NewMonitor creates a monitor for devices. With no devices it is disabled
// and Stop returns nothing.
func NewMonitor(sampler *Sampler, devices []string) *Monitor {
	if sampler == nil {
		sampler = NewSampler()
	}
	return &Monitor{sampler: sampler, devices: devices}
}

// Enabled reports whether any device is monitored.
func (m *Monitor) Enabled() bool {
	return len(m.devices) > 0
}

// Devices returns the monitored device names.
func (m *Monitor) Devices() []string {
	return m.devices
}

// Start takes the pre-run samples.
func (m *Monitor) Start() {
	m.before = make([]Sample, len(m.devices))
	for i, dev := range m.devices {
		m.before[i] = m.sampler.Sample(dev)
	}
}

// Stop takes the post-run samples and returns per-device deltas and their
// read-side totals. Stop without Start compares against zero samples.
func (m *Monitor) Stop() ([]Sample, Totals) {
	if !m.Enabled() {
		return nil, Totals{}
	}

	deltas := make([]Sample, len(m.devices))
	for i, dev := range m.devices {
		before := Sample{Device: dev}
		if i < len(m.before) {
			before = m.before[i]
		}
		deltas[i] = Delta(before, m.sampler.Sample(dev))
	}
	m.before = nil
	return deltas, Sum(deltas)
}
