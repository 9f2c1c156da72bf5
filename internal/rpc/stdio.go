package rpc

import (
	"encoding/json"
	"io"
)

// request/response envelopes for the line-framed stdio transport
// (spec.md §6 "line-framed JSON over stdio").
type request struct {
	ID   string                 `json:"id,omitempty"`
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args"`
}

type response struct {
	ID     string                 `json:"id,omitempty"`
	Result map[string]interface{} `json:"result"`
}

// ServeStdio reads one JSON request per call to Decode (newline-
// delimited in practice, though json.Decoder tolerates any whitespace
// separation) and writes one JSON response per request, until in is
// exhausted or yields a decode error. Grounded on the teacher's
// handleCapabilityRequest decode-dispatch-encode shape
// (core/agent.go), narrowed from per-endpoint HTTP handlers to a
// single operation-routed loop.
func ServeStdio(in io.Reader, out io.Writer, reg *Registry) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		result := reg.Dispatch(req.Op, req.Args)
		if err := enc.Encode(response{ID: req.ID, Result: result}); err != nil {
			return err
		}
	}
}
