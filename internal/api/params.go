package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/model"
)

// paramRequest is the JSON body of a parameter update. A string value is
// passed as its bytes, a number as an 8-byte integer and null as a nil value.
type paramRequest struct {
	Value json.RawMessage `json:"value"`
}

// decodeParam reads the request body into the byte value handed to the
// engine. formatParam marks the program format parameter, whose value may
// also be given by name.
func decodeParam(r *http.Request, formatParam bool) ([]byte, error) {
	var req paramRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	raw := bytes.TrimSpace(req.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid string value: %w", err)
		}
		if formatParam {
			f, err := model.ParseProgramFormat(s)
			if err != nil {
				return nil, err
			}
			return engine.EncodeInt32(int32(f)), nil
		}
		return []byte(s), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("value must be a string, an integer or null")
		}
		v, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("value %s is not an integer", n)
		}
		return engine.EncodeUint64(uint64(v)), nil
	}
}

// propertyKind selects how the bytes of a property are rendered as JSON.
type propertyKind int

const (
	kindString propertyKind = iota
	kindInt32
	kindUint64
	kindUint64List
)

var deviceKinds = map[model.DeviceProperty]propertyKind{
	model.DevicePropName:             kindString,
	model.DevicePropVersion:          kindString,
	model.DevicePropLibraryVersion:   kindString,
	model.DevicePropStatus:           kindInt32,
	model.DevicePropQubitsNum:        kindUint64,
	model.DevicePropSites:            kindUint64List,
	model.DevicePropNeedsCalibration: kindUint64,
	model.DevicePropPulseSupport:     kindInt32,
}

var jobKinds = map[model.JobProperty]propertyKind{
	model.JobPropID:             kindString,
	model.JobPropProgramFormat:  kindInt32,
	model.JobPropShots:          kindUint64,
	model.JobPropQubits:         kindInt32,
	model.JobPropBackendVariant: kindInt32,
	model.JobPropExecutionMode:  kindInt32,
	model.JobPropMaxBondDim:     kindInt32,
}

// propertyResponse is the JSON response for a property query.
type propertyResponse struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Value any    `json:"value"`
}

// readProperty runs query twice, first to learn the size and then to fill
// a buffer of exactly that size.
func readProperty(query func(dst []byte) (int, error)) ([]byte, error) {
	n, err := query(nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	n, err = query(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// renderProperty converts raw property bytes to a JSON-friendly value.
func renderProperty(kind propertyKind, b []byte) (any, error) {
	switch kind {
	case kindString:
		return strings.TrimRight(string(b), "\x00"), nil
	case kindInt32:
		if len(b) != 4 {
			return nil, fmt.Errorf("want 4 bytes, got %d", len(b))
		}
		return int32(binary.LittleEndian.Uint32(b)), nil
	case kindUint64:
		if len(b) != 8 {
			return nil, fmt.Errorf("want 8 bytes, got %d", len(b))
		}
		return binary.LittleEndian.Uint64(b), nil
	case kindUint64List:
		if len(b)%8 != 0 {
			return nil, fmt.Errorf("list length %d is not a multiple of 8", len(b))
		}
		out := make([]uint64, 0, len(b)/8)
		for i := 0; i < len(b); i += 8 {
			out = append(out, binary.LittleEndian.Uint64(b[i:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown property kind %d", kind)
	}
}
