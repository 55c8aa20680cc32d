// Package sensors aggregates point-in-time readings from independent,
// failure-prone data sources.
//
// Architecture:
//   - Reader is the capability each source implements (fetch once, stream)
//   - Aggregator fans a Spec out to its readers under one deadline and joins
//     whatever came back into a Snapshot
//   - DeviceReader (gopsutil) and HTTPReader are the built-in sources
//
// A Snapshot is always returned. A source that fails, times out, or is not
// enabled leaves its field nil and its reason in Snapshot.Absent.
package sensors

import (
	"fmt"
	"strings"
	"time"
)

// Kind names a source category.
type Kind string

const (
	KindLocation    Kind = "location"
	KindActivity    Kind = "activity"
	KindHealth      Kind = "health"
	KindDeviceState Kind = "device-state"
)

// AllKinds lists every kind in snapshot field order.
func AllKinds() []Kind {
	return []Kind{KindLocation, KindActivity, KindHealth, KindDeviceState}
}

// ParseKind accepts the canonical kind names plus "device".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindLocation):
		return KindLocation, nil
	case string(KindActivity):
		return KindActivity, nil
	case string(KindHealth):
		return KindHealth, nil
	case string(KindDeviceState), "device":
		return KindDeviceState, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Reading is a typed result from one source.
type Reading interface {
	Kind() Kind
}

// Location is a position fix.
type Location struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AltitudeMeters float64   `json:"altitude_meters,omitempty"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

func (Location) Kind() Kind { return KindLocation }

// Activity is the user's current motion state.
type Activity struct {
	Type       string    `json:"type"` // "stationary", "walking", "running", "cycling", "automotive"
	Confidence string    `json:"confidence,omitempty"`
	Steps      int64     `json:"steps,omitempty"`
	Since      time.Time `json:"since,omitempty"`
}

func (Activity) Kind() Kind { return KindActivity }

// Health holds the latest health samples.
type Health struct {
	HeartRateBPM     float64   `json:"heart_rate_bpm,omitempty"`
	StepsToday       int64     `json:"steps_today,omitempty"`
	ActiveEnergyKcal float64   `json:"active_energy_kcal,omitempty"`
	SleepHours       float64   `json:"sleep_hours,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

func (Health) Kind() Kind { return KindHealth }

// DeviceState holds host resource utilization.
type DeviceState struct {
	Hostname      string  `json:"hostname,omitempty"`
	Platform      string  `json:"platform,omitempty"`
	UptimeSeconds int64   `json:"uptime_seconds,omitempty"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskUsedGB    float64 `json:"disk_used_gb"`
	DiskTotalGB   float64 `json:"disk_total_gb"`
	DiskPercent   float64 `json:"disk_percent"`
}

func (DeviceState) Kind() Kind { return KindDeviceState }

// Absence explains why a snapshot field is nil.
type Absence string

const (
	AbsentDisabled Absence = "disabled"
	AbsentFailed   Absence = "failed"
	AbsentTimedOut Absence = "timed-out"
)

// DefaultDeadline bounds a Collect call whose Spec has no deadline.
const DefaultDeadline = 5 * time.Second

// Spec selects the kinds to collect and the overall deadline.
type Spec struct {
	Enabled  []Kind
	Deadline time.Duration
}

// Enables reports whether k is enabled.
func (s Spec) Enables(k Kind) bool {
	for _, e := range s.Enabled {
		if e == k {
			return true
		}
	}
	return false
}

// kinds returns the enabled kinds without duplicates, in AllKinds order.
func (s Spec) kinds() []Kind {
	var out []Kind
	for _, k := range AllKinds() {
		if s.Enables(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s Spec) deadline() time.Duration {
	if s.Deadline <= 0 {
		return DefaultDeadline
	}
	return s.Deadline
}

// Snapshot is the joined result of one Collect call. Nil fields are absent.
type Snapshot struct {
	CapturedAt  time.Time        `json:"captured_at"`
	Location    *Location        `json:"location,omitempty"`
	Activity    *Activity        `json:"activity,omitempty"`
	Health      *Health          `json:"health,omitempty"`
	DeviceState *DeviceState     `json:"device_state,omitempty"`
	Absent      map[Kind]Absence `json:"absent,omitempty"`
}

// HasData reports whether any field is present.
func (s *Snapshot) HasData() bool {
	return s.Location != nil || s.Activity != nil || s.Health != nil || s.DeviceState != nil
}

// Has reports whether the field for k is present.
func (s *Snapshot) Has(k Kind) bool {
	switch k {
	case KindLocation:
		return s.Location != nil
	case KindActivity:
		return s.Activity != nil
	case KindHealth:
		return s.Health != nil
	case KindDeviceState:
		return s.DeviceState != nil
	}
	return false
}

// Summary renders the present fields as one line.
func (s *Snapshot) Summary() string {
	var parts []string
	if s.Location != nil {
		parts = append(parts, fmt.Sprintf("location %.4f,%.4f", s.Location.Latitude, s.Location.Longitude))
	}
	if s.Activity != nil && s.Activity.Type != "" {
		parts = append(parts, "activity "+s.Activity.Type)
	}
	if s.Health != nil {
		if s.Health.HeartRateBPM > 0 {
			parts = append(parts, fmt.Sprintf("heart rate %.0f bpm", s.Health.HeartRateBPM))
		}
		if s.Health.StepsToday > 0 {
			parts = append(parts, fmt.Sprintf("%d steps today", s.Health.StepsToday))
		}
	}
	if s.DeviceState != nil {
		parts = append(parts, fmt.Sprintf("cpu %.0f%%, memory %.0f%%, disk %.0f%%",
			s.DeviceState.CPUPercent, s.DeviceState.MemoryPercent, s.DeviceState.DiskPercent))
	}
	if len(parts) == 0 {
		return "no data"
	}
	return strings.Join(parts, "; ")
}

// set stores r in its field. It reports false for an unknown reading type.
func (s *Snapshot) set(r Reading) bool {
	switch v := r.(type) {
	case Location:
		s.Location = &v
	case *Location:
		s.Location = v
	case Activity:
		s.Activity = &v
	case *Activity:
		s.Activity = v
	case Health:
		s.Health = &v
	case *Health:
		s.Health = v
	case DeviceState:
		s.DeviceState = &v
	case *DeviceState:
		s.DeviceState = v
	default:
		return false
	}
	return true
}
