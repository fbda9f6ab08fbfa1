package nocgen

// errors.go holds the typed errors raised by the synthesis passes, and
// the classification codes attached to validator findings.  Transform
// passes fail fast with one of these error types when a precondition is
// violated; the validator never returns errors as Go errors, it reports
// them as Finding values (see validate.go).

import "fmt"

// A StructuralError reports a malformed graph: dangling edge endpoints,
// duplicated node ids, or a duplicated ordered edge pair.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Msg
}

// A ConfigError reports an invalid or out-of-range configuration or
// requirement value, e.g. a non-positive bandwidth handed to the generator.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Msg
}

// A CapacityError reports a port, fan-in, or fan-out overflow.
type CapacityError struct {
	Msg string
}

func (e *CapacityError) Error() string {
	return "capacity error: " + e.Msg
}

// A BandwidthError reports oversubscription of a target's bandwidth.
type BandwidthError struct {
	Msg string
}

func (e *BandwidthError) Error() string {
	return "bandwidth error: " + e.Msg
}

// A LatencyError reports a violated end-to-end latency requirement.
type LatencyError struct {
	Msg string
}

func (e *LatencyError) Error() string {
	return "latency error: " + e.Msg
}

func structuralErrorf(format string, args ...any) error {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// FindingClass labels a validator finding with the error family it
// belongs to, mirroring the typed errors above.
type FindingClass int

const (
	StructuralClass FindingClass = iota
	ConfigClass
	CapacityClass
	BandwidthClass
	LatencyClass
)

var findingClassToStr = map[FindingClass]string{
	StructuralClass: "structural",
	ConfigClass:     "config",
	CapacityClass:   "capacity",
	BandwidthClass:  "bandwidth",
	LatencyClass:    "latency",
}

func (fc FindingClass) String() string {
	return findingClassToStr[fc]
}
