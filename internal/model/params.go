package model

import "fmt"

// SessionParam names a settable session configuration field.
type SessionParam int32

// Session parameters. Only Token and the execution defaults are accepted;
// the remaining values are recognized but not supported.
const (
	SessionToken SessionParam = iota
	SessionBaseURL
	SessionAuthFile
	SessionAuthURL
	SessionUsername
	SessionPassword
	SessionQubits
	SessionBackendVariant
	SessionExecutionMode
	SessionMaxBondDim
	SessionCustom5
	sessionParamMax
)

var sessionParamNames = map[string]int32{
	"token":           int32(SessionToken),
	"base_url":        int32(SessionBaseURL),
	"auth_file":       int32(SessionAuthFile),
	"auth_url":        int32(SessionAuthURL),
	"username":        int32(SessionUsername),
	"password":        int32(SessionPassword),
	"qubits":          int32(SessionQubits),
	"backend_variant": int32(SessionBackendVariant),
	"execution_mode":  int32(SessionExecutionMode),
	"max_bond_dim":    int32(SessionMaxBondDim),
	"custom5":         int32(SessionCustom5),
}

// Valid reports whether p is a recognized session parameter.
func (p SessionParam) Valid() bool { return p >= 0 && p < sessionParamMax }

// ParseSessionParam resolves a session parameter by name.
func ParseSessionParam(s string) (SessionParam, error) {
	v, ok := lookup(sessionParamNames, s)
	if !ok {
		return -1, fmt.Errorf("unknown session parameter %q", s)
	}
	return SessionParam(v), nil
}

// JobParam names a settable job field.
type JobParam int32

// Job parameters.
const (
	JobProgramFormat JobParam = iota
	JobProgram
	JobShots
	JobQubits
	JobBackendVariant
	JobExecutionMode
	JobMaxBondDim
	JobCustom5
	jobParamMax
)

var jobParamNames = map[string]int32{
	"program_format":  int32(JobProgramFormat),
	"program":         int32(JobProgram),
	"shots":           int32(JobShots),
	"qubits":          int32(JobQubits),
	"backend_variant": int32(JobBackendVariant),
	"execution_mode":  int32(JobExecutionMode),
	"max_bond_dim":    int32(JobMaxBondDim),
	"custom5":         int32(JobCustom5),
}

// Valid reports whether p is a recognized job parameter.
func (p JobParam) Valid() bool { return p >= 0 && p < jobParamMax }

// ParseJobParam resolves a job parameter by name.
func ParseJobParam(s string) (JobParam, error) {
	v, ok := lookup(jobParamNames, s)
	if !ok {
		return -1, fmt.Errorf("unknown job parameter %q", s)
	}
	return JobParam(v), nil
}

// JobProperty names a readable job field. Properties share their numbering
// with JobParam and add the job identifier.
type JobProperty int32

// Job properties.
const (
	JobPropID JobProperty = iota
	JobPropProgramFormat
	JobPropShots
	JobPropQubits
	JobPropBackendVariant
	JobPropExecutionMode
	JobPropMaxBondDim
	JobPropCustom5
	jobPropMax
)

var jobPropNames = map[string]int32{
	"id":              int32(JobPropID),
	"program_format":  int32(JobPropProgramFormat),
	"shots":           int32(JobPropShots),
	"qubits":          int32(JobPropQubits),
	"backend_variant": int32(JobPropBackendVariant),
	"execution_mode":  int32(JobPropExecutionMode),
	"max_bond_dim":    int32(JobPropMaxBondDim),
	"custom5":         int32(JobPropCustom5),
}

// Valid reports whether p is a recognized job property.
func (p JobProperty) Valid() bool { return p >= 0 && p < jobPropMax }

// ParseJobProperty resolves a job property by name.
func ParseJobProperty(s string) (JobProperty, error) {
	v, ok := lookup(jobPropNames, s)
	if !ok {
		return -1, fmt.Errorf("unknown job property %q", s)
	}
	return JobProperty(v), nil
}

// ProgramFormat tags the encoding of a job's program text.
type ProgramFormat int32

// Program formats. Only QASM2 is executed.
const (
	FormatQASM2 ProgramFormat = iota
	FormatQASM3
	FormatQIRBaseString
	FormatQIRBaseModule
	FormatQIRAdaptiveString
	FormatQIRAdaptiveModule
	FormatCalibration
	FormatCustom1
	FormatCustom2
	FormatCustom3
	FormatCustom4
	FormatCustom5
	formatMax
)

var formatNames = [...]string{
	FormatQASM2:             "qasm2",
	FormatQASM3:             "qasm3",
	FormatQIRBaseString:     "qir_base_string",
	FormatQIRBaseModule:     "qir_base_module",
	FormatQIRAdaptiveString: "qir_adaptive_string",
	FormatQIRAdaptiveModule: "qir_adaptive_module",
	FormatCalibration:       "calibration",
	FormatCustom1:           "custom1",
	FormatCustom2:           "custom2",
	FormatCustom3:           "custom3",
	FormatCustom4:           "custom4",
	FormatCustom5:           "custom5",
}

// Valid reports whether f is a recognized program format.
func (f ProgramFormat) Valid() bool { return f >= 0 && f < formatMax }

func (f ProgramFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("ProgramFormat(%d)", int32(f))
	}
	return formatNames[f]
}

// MarshalText encodes the format by name for JSON responses.
func (f ProgramFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a format name.
func (f *ProgramFormat) UnmarshalText(b []byte) error {
	v, err := ParseProgramFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseProgramFormat resolves a program format by name.
func ParseProgramFormat(s string) (ProgramFormat, error) {
	i, ok := indexOf(formatNames[:], s)
	if !ok {
		return -1, fmt.Errorf("unknown program format %q", s)
	}
	return ProgramFormat(i), nil
}

// DeviceProperty names a readable device field.
type DeviceProperty int32

// Device properties.
const (
	DevicePropName DeviceProperty = iota
	DevicePropVersion
	DevicePropStatus
	DevicePropLibraryVersion
	DevicePropQubitsNum
	DevicePropSites
	DevicePropOperations
	DevicePropCouplingMap
	DevicePropNeedsCalibration
	DevicePropPulseSupport
	devicePropMax
)

var devicePropNames = map[string]int32{
	"name":              int32(DevicePropName),
	"version":           int32(DevicePropVersion),
	"status":            int32(DevicePropStatus),
	"library_version":   int32(DevicePropLibraryVersion),
	"qubits_num":        int32(DevicePropQubitsNum),
	"sites":             int32(DevicePropSites),
	"operations":        int32(DevicePropOperations),
	"coupling_map":      int32(DevicePropCouplingMap),
	"needs_calibration": int32(DevicePropNeedsCalibration),
	"pulse_support":     int32(DevicePropPulseSupport),
}

// Valid reports whether p is a recognized device property.
func (p DeviceProperty) Valid() bool { return p >= 0 && p < devicePropMax }

// ParseDeviceProperty resolves a device property by name.
func ParseDeviceProperty(s string) (DeviceProperty, error) {
	v, ok := lookup(devicePropNames, s)
	if !ok {
		return -1, fmt.Errorf("unknown device property %q", s)
	}
	return DeviceProperty(v), nil
}

// SiteProperty names a readable property of one qubit site.
type SiteProperty int32

// Site properties.
const (
	SitePropIndex SiteProperty = iota
	SitePropT1
	SitePropT2
	SitePropName
	SitePropModuleIndex
	sitePropMax
)

var sitePropNames = map[string]int32{
	"index":        int32(SitePropIndex),
	"t1":           int32(SitePropT1),
	"t2":           int32(SitePropT2),
	"name":         int32(SitePropName),
	"module_index": int32(SitePropModuleIndex),
}

// Valid reports whether p is a recognized site property.
func (p SiteProperty) Valid() bool { return p >= 0 && p < sitePropMax }

// ParseSiteProperty resolves a site property by name.
func ParseSiteProperty(s string) (SiteProperty, error) {
	v, ok := lookup(sitePropNames, s)
	if !ok {
		return -1, fmt.Errorf("unknown site property %q", s)
	}
	return SiteProperty(v), nil
}

// PulseSupportNone is the pulse support level reported by the device.
const PulseSupportNone int32 = 0

// ResultKind selects which view of a finished job's results to read.
type ResultKind int32

// Result kinds. Only the histogram views are served.
const (
	ResultRaw ResultKind = iota
	ResultHistKeys
	ResultHistValues
	ResultStateVectorDense
	ResultProbabilitiesDense
	ResultProbabilitiesSparseKeys
	ResultProbabilitiesSparseValues
	resultKindMax
)

var resultKindNames = map[string]int32{
	"raw":                         int32(ResultRaw),
	"hist_keys":                   int32(ResultHistKeys),
	"hist_values":                 int32(ResultHistValues),
	"statevector_dense":           int32(ResultStateVectorDense),
	"probabilities_dense":         int32(ResultProbabilitiesDense),
	"probabilities_sparse_keys":   int32(ResultProbabilitiesSparseKeys),
	"probabilities_sparse_values": int32(ResultProbabilitiesSparseValues),
}

// Valid reports whether k is a recognized result kind.
func (k ResultKind) Valid() bool { return k >= 0 && k < resultKindMax }

// ParseResultKind resolves a result kind by name.
func ParseResultKind(s string) (ResultKind, error) {
	v, ok := lookup(resultKindNames, s)
	if !ok {
		return -1, fmt.Errorf("unknown result kind %q", s)
	}
	return ResultKind(v), nil
}
