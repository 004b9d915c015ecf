package engine

import (
	"bytes"

	"github.com/seantiz/qdevice/internal/model"
)

// SetSessionParameter stores value as the session's p. It is accepted only
// while s is Allocated. A nil value validates the call without changing
// anything. Numeric values are 4- or 8-byte little-endian integers; the
// token is raw text.
func (e *Engine) SetSessionParameter(s *Session, p model.SessionParam, value []byte) error {
	if s == nil {
		return invalidf("nil session")
	}
	if !p.Valid() {
		return invalidf("unknown session parameter %d", int32(p))
	}
	if value != nil && len(value) == 0 {
		return invalidf("zero-length value")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freed || s.status != model.SessionAllocated {
		return badStatef("session %s is %s", s.id, s.status)
	}

	switch p {
	case model.SessionToken, model.SessionQubits, model.SessionBackendVariant,
		model.SessionExecutionMode, model.SessionMaxBondDim:
	default:
		return notSupportedf("session parameter %d", int32(p))
	}
	if value == nil {
		return nil
	}

	if p == model.SessionToken {
		s.token = string(trimNUL(value))
		return nil
	}
	v, err := decodeInt32(value)
	if err != nil {
		return err
	}
	switch p {
	case model.SessionQubits:
		if v < 1 {
			return invalidf("qubit count %d must be positive", v)
		}
		s.defaults.Qubits = v
	case model.SessionBackendVariant:
		s.defaults.Variant = v
	case model.SessionExecutionMode:
		s.defaults.Mode = v
	case model.SessionMaxBondDim:
		s.defaults.MaxBondDim = v
	}
	return nil
}

// SetJobParameter stores value as the job's p. It is accepted only while j
// is Created. A nil value validates the call without changing anything.
func (e *Engine) SetJobParameter(j *Job, p model.JobParam, value []byte) error {
	if j == nil {
		return invalidf("nil job")
	}
	if !p.Valid() {
		return invalidf("unknown job parameter %d", int32(p))
	}
	if value != nil && len(value) == 0 {
		return invalidf("zero-length value")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if j.freed {
		return invalidf("job %d was freed", j.id)
	}
	if j.status != model.JobCreated {
		return badStatef("job %d is %s", j.id, j.status)
	}
	if p == model.JobCustom5 {
		return notSupportedf("job parameter %d", int32(p))
	}
	if value == nil {
		return nil
	}

	switch p {
	case model.JobProgramFormat:
		v, err := decodeInt32(value)
		if err != nil {
			return err
		}
		f := model.ProgramFormat(v)
		if !f.Valid() {
			return invalidf("unknown program format %d", v)
		}
		if f != model.FormatQASM2 {
			return notSupportedf("program format %s", f)
		}
		j.format = f
	case model.JobProgram:
		j.program = string(trimNUL(value))
	case model.JobShots:
		v, err := decodeUint(value)
		if err != nil {
			return err
		}
		if v == 0 {
			return invalidf("shot count must be positive")
		}
		j.cfg.Shots = v
	default:
		v, err := decodeInt32(value)
		if err != nil {
			return err
		}
		switch p {
		case model.JobQubits:
			if v < 1 {
				return invalidf("qubit count %d must be positive", v)
			}
			j.cfg.Qubits = v
		case model.JobBackendVariant:
			j.cfg.Variant = v
		case model.JobExecutionMode:
			j.cfg.Mode = v
		case model.JobMaxBondDim:
			j.cfg.MaxBondDim = v
		}
	}
	return nil
}

// trimNUL drops a trailing NUL terminator.
func trimNUL(b []byte) []byte {
	return bytes.TrimRight(b, "\x00")
}
