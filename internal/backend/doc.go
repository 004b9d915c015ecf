// Package backend defines the executor interface the job engine drives,
// along with the request, result and run configuration types exchanged with
// executor implementations, and a registry that selects one by name.
package backend
