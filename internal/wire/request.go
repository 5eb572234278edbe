package wire

import (
	"fmt"
	"io"

	"github.com/atelier-ml/atelier/internal/selection"

	"github.com/vmihailenco/msgpack/v5"
)

// WriteRequest hands an InstallRequest to the worker by value. It is a single
// msgpack document on the worker's stdin; the worker reads it to EOF before
// any install work starts.
func WriteRequest(w io.Writer, req selection.InstallRequest) error {
	if err := msgpack.NewEncoder(w).Encode(req); err != nil {
		return fmt.Errorf("failed to encode install request: %w", err)
	}

	return nil
}

func ReadRequest(r io.Reader) (selection.InstallRequest, error) {
	var req selection.InstallRequest
	if err := msgpack.NewDecoder(r).Decode(&req); err != nil {
		return selection.InstallRequest{}, fmt.Errorf("failed to decode install request: %w", err)
	}

	return req, nil
}
