package merchant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	jmes "github.com/jmespath/go-jmespath"
)

// Pipeline classifies raw responses. The error expression is a JMESPath
// selecting the message inside an error body ("error" for this backend).
type Pipeline struct {
	errorPath *jmes.JMESPath
}

func NewPipeline(errorPath string) (*Pipeline, error) {
	if errorPath == "" {
		errorPath = "error"
	}
	jp, err := jmes.Compile(errorPath)
	if err != nil {
		return nil, fmt.Errorf("compile error path %q: %w", errorPath, err)
	}
	return &Pipeline{errorPath: jp}, nil
}

// DefaultPipeline reads the top-level "error" field.
func DefaultPipeline() *Pipeline {
	p, _ := NewPipeline("error")
	return p
}

// Decode classifies raw and, on success, decodes the body into T. Every
// success envelope is a JSON object, so any other top-level value (null
// included) is undecodable. A nil p uses DefaultPipeline.
func Decode[T any](p *Pipeline, raw Raw) (T, error) {
	var out T
	if p == nil {
		p = DefaultPipeline()
	}
	if raw.Err != nil {
		return out, &TransportError{Message: raw.Err.Error(), Err: raw.Err}
	}
	if raw.Status >= http.StatusBadRequest {
		return out, p.statusError(raw)
	}
	body := bytes.TrimSpace(raw.Body)
	if len(body) == 0 {
		return out, &APIError{Message: DefaultMessage}
	}
	if body[0] != '{' {
		return out, &APIError{Message: fmt.Sprintf("cannot decode %.20s: response body is not a JSON object", body)}
	}
	if err := json.Unmarshal(raw.Body, &out); err != nil {
		return out, &APIError{Message: err.Error()}
	}
	return out, nil
}

func (p *Pipeline) statusError(raw Raw) *APIError {
	code := strconv.Itoa(raw.Status)
	var doc any
	if err := json.Unmarshal(raw.Body, &doc); err != nil {
		return &APIError{Code: code, Message: err.Error()}
	}
	if v, err := p.errorPath.Search(doc); err == nil {
		if msg, ok := v.(string); ok {
			return &APIError{Code: code, Message: msg}
		}
	}
	return &APIError{Code: code, Message: "Status Code:" + code + ", " + DefaultMessage}
}
