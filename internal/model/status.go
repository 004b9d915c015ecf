package model

import (
	"fmt"
	"strings"
)

// JobStatus is the lifecycle state of a job.
type JobStatus int32

// Job status values. The numeric values are part of the property protocol.
const (
	JobCreated JobStatus = iota
	JobQueued
	JobRunning
	JobCanceled
	JobDone
)

var jobStatusNames = [...]string{
	JobCreated:  "created",
	JobQueued:   "queued",
	JobRunning:  "running",
	JobCanceled: "canceled",
	JobDone:     "done",
}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return fmt.Sprintf("JobStatus(%d)", int32(s))
	}
	return jobStatusNames[s]
}

// MarshalText encodes the status by name for JSON responses.
func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *JobStatus) UnmarshalText(b []byte) error {
	i, ok := indexOf(jobStatusNames[:], string(b))
	if !ok {
		return fmt.Errorf("unknown job status %q", b)
	}
	*s = JobStatus(i)
	return nil
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobCanceled
}

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobCreated: {
		JobQueued:   true,
		JobCanceled: true,
	},
	JobQueued: {
		JobRunning:  true,
		JobCanceled: true,
	},
	JobRunning: {
		JobDone:     true,
		JobCanceled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to JobStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// DeviceStatus is the process-wide availability of the device.
type DeviceStatus int32

// Device status values.
const (
	DeviceOffline DeviceStatus = iota
	DeviceIdle
	DeviceBusy
	DeviceError
	DeviceMaintenance
)

var deviceStatusNames = [...]string{
	DeviceOffline:     "offline",
	DeviceIdle:        "idle",
	DeviceBusy:        "busy",
	DeviceError:       "error",
	DeviceMaintenance: "maintenance",
}

func (s DeviceStatus) String() string {
	if s < 0 || int(s) >= len(deviceStatusNames) {
		return fmt.Sprintf("DeviceStatus(%d)", int32(s))
	}
	return deviceStatusNames[s]
}

// MarshalText encodes the status by name for JSON responses.
func (s DeviceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *DeviceStatus) UnmarshalText(b []byte) error {
	i, ok := indexOf(deviceStatusNames[:], string(b))
	if !ok {
		return fmt.Errorf("unknown device status %q", b)
	}
	*s = DeviceStatus(i)
	return nil
}

// Available reports whether sessions may be initialized against the device.
func (s DeviceStatus) Available() bool {
	switch s {
	case DeviceOffline, DeviceError, DeviceMaintenance:
		return false
	default:
		return true
	}
}

// SessionStatus is the lifecycle state of a client session.
type SessionStatus int32

// Session status values.
const (
	SessionAllocated SessionStatus = iota
	SessionInitialized
)

func (s SessionStatus) String() string {
	switch s {
	case SessionAllocated:
		return "allocated"
	case SessionInitialized:
		return "initialized"
	default:
		return fmt.Sprintf("SessionStatus(%d)", int32(s))
	}
}

// MarshalText encodes the status by name for JSON responses.
func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *SessionStatus) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "allocated":
		*s = SessionAllocated
	case "initialized":
		*s = SessionInitialized
	default:
		return fmt.Errorf("unknown session status %q", b)
	}
	return nil
}

// lookup resolves a case-insensitive name against a name table.
func lookup(names map[string]int32, s string) (int32, bool) {
	v, ok := names[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// indexOf finds a case-insensitive name in a dense name table.
func indexOf(names []string, s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s {
			return i, true
		}
	}
	return 0, false
}
