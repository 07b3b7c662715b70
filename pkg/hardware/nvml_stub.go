//go:build !nvml

package hardware

import "github.com/amdinfer/inference-server/pkg/errors"

// NewProbe reports hardware telemetry as unavailable when the binary was
// built without the nvml tag (no cgo/dlopen dependency on the driver).
func NewProbe() (Probe, error) {
	return nil, errors.New(errors.External, "built without nvml support")
}
