package types

import "sync"

// Callback delivers a completed InferenceResponse back to whatever
// protocol adapter originated the request.
type Callback func(*Response)

// Request is the protocol-agnostic representation of one inference call.
// Adapters (pkg/request) construct a Request by materializing wire bytes
// into pool buffers; the batcher only ever deals with Request values, never
// the wire format they came from.
type Request struct {
	ID         string
	Parameters Parameters
	Inputs     []Tensor
	// Outputs optionally pre-specifies which outputs the caller wants; nil
	// means "all declared outputs".
	Outputs []Tensor

	callback Callback
	once     sync.Once
}

// NewRequest constructs a Request with the given callback. The callback is
// guaranteed to run at most once via Complete/Fail, regardless of how many
// times they're called.
func NewRequest(id string, params Parameters, inputs, outputs []Tensor, cb Callback) *Request {
	return &Request{ID: id, Parameters: params, Inputs: inputs, Outputs: outputs, callback: cb}
}

// Complete delivers a successful response. Only the first call has any
// effect; later calls (e.g. an accidental retry) are idempotent no-ops,
// per spec §4.6.
func (r *Request) Complete(resp *Response) {
	r.once.Do(func() {
		if r.callback != nil {
			r.callback(resp)
		}
	})
}

// Fail delivers an error response built from err, applying the same
// exactly-once guarantee as Complete.
func (r *Request) Fail(err error) {
	r.Complete(&Response{ID: r.ID, Error: err.Error()})
}

// Response is the protocol-agnostic result of one inference call. Exactly
// one of Outputs or Error is populated.
type Response struct {
	ID      string
	Model   string
	Parameters Parameters
	Outputs []Tensor
	Error   string
	// Trace carries trace-context propagated from the Batch so protocol
	// adapters can inject it into their reply (HTTP headers, etc).
	Trace map[string]string
}

// IsError reports whether this response carries an error instead of
// outputs.
func (r *Response) IsError() bool { return r.Error != "" }
