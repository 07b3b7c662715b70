// Package hardware exposes whatever GPU telemetry is available on the
// host. It is entirely optional: without the nvml build tag (and without
// an NVIDIA driver), Probe reports itself unavailable and every endpoint
// built on it degrades to "no hardware info" rather than failing.
package hardware

// DeviceInfo is one GPU's point-in-time telemetry snapshot.
type DeviceInfo struct {
	Name            string
	Index           int
	MemoryTotalGB   float64
	MemoryFreeGB    float64
	MemoryUsedGB    float64
	GPUUtilization  float64
	MemUtilization  float64
	TemperatureC    float64
}

// Probe reports GPU presence and per-device telemetry.
type Probe interface {
	Available() bool
	DeviceCount() int
	DeviceInfo(index int) (*DeviceInfo, error)
	Shutdown()
}
