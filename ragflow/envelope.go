package ragflow

import "fmt"

// Envelope is RAGFlow's uniform response wrapper {code, message, data}.
type Envelope struct {
	Code    int
	HasCode bool
	Message string
	Data    any
}

// ParseEnvelope interprets a decoded response body as an envelope. It fails
// with ErrMalformedResponse when v is not a JSON object.
func ParseEnvelope(v any) (Envelope, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: expected object, got %T", ErrMalformedResponse, v)
	}
	env := Envelope{Data: m["data"]}
	if code, ok := intValue(m["code"]); ok {
		env.Code = code
		env.HasCode = true
	}
	env.Message = stringValue(m["message"])
	return env, nil
}

// Err returns an *EnvelopeError unless the envelope reports code 0.
func (e Envelope) Err() error {
	if e.HasCode && e.Code == 0 {
		return nil
	}
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return &EnvelopeError{Code: e.Code, Message: msg}
}

// call performs a request and unwraps a successful envelope.
func (c *Client) call(req request) (Envelope, error) {
	v, err := c.Request(req.ctx, req.method, req.path, req.body, req.query)
	if err != nil {
		return Envelope{}, err
	}
	env, err := ParseEnvelope(v)
	if err != nil {
		return Envelope{}, err
	}
	if err := env.Err(); err != nil {
		return env, err
	}
	return env, nil
}
