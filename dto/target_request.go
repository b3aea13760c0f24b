package dto

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultTarget is the dbt target used when a request does not name one
const DefaultTarget = "prod"

// TargetRequest represents the body of a run request. Target is nil when the
// field was omitted.
type TargetRequest struct {
	Target *string `json:"target"`
}

// ParseTargetRequest decodes a run request body. The body must be exactly one JSON
// object; an explicit null target is rejected.
func ParseTargetRequest(body []byte) (*TargetRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, eris.Wrap(err, "invalid request body")
	}
	if fields == nil {
		return nil, eris.New("invalid request body: expected a JSON object")
	}

	req := &TargetRequest{}
	raw, ok := fields["target"]
	if !ok {
		return req, nil
	}

	if string(raw) == "null" {
		return nil, eris.New("invalid target: must be a string, not null")
	}

	var target string
	if err := json.Unmarshal(raw, &target); err != nil {
		return nil, eris.Wrap(err, "invalid target")
	}
	req.Target = &target

	return req, nil
}

// ResolvedTarget returns the requested target or DefaultTarget when none was given
func (r TargetRequest) ResolvedTarget() string {
	if r.Target == nil {
		return DefaultTarget
	}
	return *r.Target
}

// Validate rejects targets dbt would parse as a flag
func (r TargetRequest) Validate() error {
	if target := r.ResolvedTarget(); strings.HasPrefix(target, "-") {
		return eris.Errorf("invalid target %q: must not start with '-'", target)
	}
	return nil
}
