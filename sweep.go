package nocgen

// sweep.go holds the injection-rate sweep controller.  The controller
// probes increasing injection rates against a latency oracle until the
// measured latency crosses the saturation threshold, adapting its step
// downward as the latency curve steepens so the saturation point is
// located to within one rate step.  The oracle is injected rather than
// built in, so the controller works the same against the packaged
// simulator (perfsim.go) or an external measurement harness.

import "math"

// SweepState names the phase the sweep ended in
type SweepState int

const (
	// Probing means the sweep is still in progress; a finished sweep
	// never reports it
	Probing SweepState = iota

	// Saturated means a probed rate pushed latency past the threshold
	Saturated

	// ExhaustedRange means the sweep reached 100% injection without
	// saturating
	ExhaustedRange
)

var sweepStateToStr map[SweepState]string = map[SweepState]string{
	Probing: "Probing", Saturated: "Saturated", ExhaustedRange: "ExhaustedRange"}

func (ss SweepState) String() string {
	return sweepStateToStr[ss]
}

// A LatencyOracle measures the average packet latency, in cycles, of
// the topology under test at the given injection rate (percent of each
// initiator's peak bandwidth)
type LatencyOracle func(injectionRate float64) float64

// A SweepSample is one probed (rate, latency) point
type SweepSample struct {
	Rate    float64 `json:"rate" yaml:"rate"`
	Latency float64 `json:"latency" yaml:"latency"`
}

// A SweepResult carries the terminal state of a sweep together with the
// full probe history
type SweepResult struct {
	State SweepState

	// SaturationRate is the first probed rate past the threshold, valid
	// only when State is Saturated
	SaturationRate float64

	// ZeroLoadLatency is the oracle's reading at rate 0
	ZeroLoadLatency float64

	Samples []SweepSample
}

// minimum latency, in cycles, a topology must exceed to count as
// saturated no matter how small its zero-load latency is
const saturationFloor = 100.0

// slope (cycles per rate percent) past which the controller halves its
// step to localize the saturation point
const steepSlope = 1.0

// RunSweep locates the saturation point of the latency curve the oracle
// exposes.  The saturation threshold is the zero-load latency scaled by
// cfg.SweepThreshold, floored at 100 cycles.  The probe step starts at
// cfg.SweepStep and halves, never below 1, whenever the curve's slope
// reaches 1 cycle per percent.  Termination is guaranteed: the rate
// advances by at least 1 every probe and the sweep gives up past 100%.
func RunSweep(oracle LatencyOracle, cfg TopoConfig) SweepResult {
	zeroLoad := oracle(0.0)
	threshold := math.Max(saturationFloor, cfg.SweepThreshold*zeroLoad)

	result := SweepResult{State: Probing, ZeroLoadLatency: zeroLoad}
	result.Samples = append(result.Samples, SweepSample{Rate: 0.0, Latency: zeroLoad})

	step := cfg.SweepStep
	if step < 1.0 {
		step = 1.0
	}
	prevRate, prevLatency := 0.0, zeroLoad

	for {
		rate := prevRate + step
		if rate > 100.0 {
			result.State = ExhaustedRange
			return result
		}
		latency := oracle(rate)
		result.Samples = append(result.Samples, SweepSample{Rate: rate, Latency: latency})

		if latency > threshold {
			result.State = Saturated
			result.SaturationRate = rate
			return result
		}
		slope := (latency - prevLatency) / (rate - prevRate)
		if slope >= steepSlope {
			step = math.Max(1.0, step/2.0)
		}
		prevRate, prevLatency = rate, latency
	}
}
