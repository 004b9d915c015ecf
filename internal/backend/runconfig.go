package backend

import (
	"strconv"
	"strings"
)

// MaxBondDimKey is the configuration key that caps the bond dimension of
// matrix product state simulations.
const MaxBondDimKey = "matrix_product_state_max_bond_dimension"

// RunConfig is the execution configuration of one job.
type RunConfig struct {
	Shots      uint64 `json:"shots"`
	Qubits     int32  `json:"qubits"`
	Variant    int32  `json:"backend_variant"`
	Mode       int32  `json:"execution_mode"`
	MaxBondDim int32  `json:"max_bond_dim"`
}

// JSON renders the configuration blob handed to the simulator. The shot
// count is always present; the bond dimension cap only when non-zero.
func (c RunConfig) JSON() string {
	var b strings.Builder
	b.WriteString(`{"shots": `)
	b.WriteString(strconv.FormatUint(c.Shots, 10))
	if c.MaxBondDim != 0 {
		b.WriteString(`, "` + MaxBondDimKey + `": `)
		b.WriteString(strconv.FormatInt(int64(c.MaxBondDim), 10))
	}
	b.WriteString("}")
	return b.String()
}
