package engine

import (
	"strconv"

	"github.com/seantiz/qdevice/internal/model"
)

// Property queries write the value of one named field into dst and return
// the number of bytes it needs. Pass a nil dst to learn the size first.
// Strings are NUL-terminated; numbers are little-endian.

// QueryJobProperty reads a property of j. The id is rendered as a decimal
// string; the program format and the overrides are 4 bytes; shots is 8.
func (e *Engine) QueryJobProperty(j *Job, p model.JobProperty, dst []byte) (int, error) {
	if j == nil {
		return 0, invalidf("nil job")
	}
	if !p.Valid() {
		return 0, invalidf("unknown job property %d", int32(p))
	}
	if err := checkDst(dst); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch p {
	case model.JobPropID:
		return putString(dst, strconv.FormatInt(j.id, 10))
	case model.JobPropProgramFormat:
		return putInt32(dst, int32(j.format))
	case model.JobPropShots:
		return putUint64(dst, j.cfg.Shots)
	case model.JobPropQubits:
		return putInt32(dst, j.cfg.Qubits)
	case model.JobPropBackendVariant:
		return putInt32(dst, j.cfg.Variant)
	case model.JobPropExecutionMode:
		return putInt32(dst, j.cfg.Mode)
	case model.JobPropMaxBondDim:
		return putInt32(dst, j.cfg.MaxBondDim)
	default:
		return 0, notSupportedf("job property %d", int32(p))
	}
}

// QueryDeviceProperty reads a device property through s, which must be
// Initialized. The qubit count and site list follow the session's qubit
// setting.
func (e *Engine) QueryDeviceProperty(s *Session, p model.DeviceProperty, dst []byte) (int, error) {
	if s == nil {
		return 0, invalidf("nil session")
	}
	if !p.Valid() {
		return 0, invalidf("unknown device property %d", int32(p))
	}
	if err := checkDst(dst); err != nil {
		return 0, err
	}

	s.mu.Lock()
	status := s.status
	qubits := s.defaults.Qubits
	s.mu.Unlock()
	if status != model.SessionInitialized {
		return 0, badStatef("session %s is %s", s.id, status)
	}

	switch p {
	case model.DevicePropName:
		return putString(dst, e.deviceName)
	case model.DevicePropVersion:
		return putString(dst, DeviceVersion)
	case model.DevicePropLibraryVersion:
		return putString(dst, LibraryVersion)
	case model.DevicePropStatus:
		return putInt32(dst, int32(e.DeviceStatus()))
	case model.DevicePropQubitsNum:
		return putUint64(dst, uint64(qubits))
	case model.DevicePropSites:
		return putUint64s(dst, Sites(qubits))
	case model.DevicePropNeedsCalibration:
		return putUint64(dst, 0)
	case model.DevicePropPulseSupport:
		return putInt32(dst, model.PulseSupportNone)
	default:
		return 0, notSupportedf("device property %d", int32(p))
	}
}

// QuerySiteProperty reads a property of the qubit site with index site.
// Sites sit on a single module, so ModuleIndex is always 0.
func (e *Engine) QuerySiteProperty(s *Session, site uint64, p model.SiteProperty, dst []byte) (int, error) {
	if s == nil {
		return 0, invalidf("nil session")
	}
	if !p.Valid() {
		return 0, invalidf("unknown site property %d", int32(p))
	}
	if err := checkDst(dst); err != nil {
		return 0, err
	}

	switch p {
	case model.SitePropIndex:
		return putUint64(dst, site)
	case model.SitePropModuleIndex:
		return putUint64(dst, 0)
	default:
		return 0, notSupportedf("site property %d", int32(p))
	}
}

// Sites returns the site indices of a device with n qubits.
func Sites(n int32) []uint64 {
	if n < 0 {
		n = 0
	}
	sites := make([]uint64, n)
	for i := range sites {
		sites[i] = uint64(i)
	}
	return sites
}
