package service

import (
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/retail_console/internal/models"
)

// The profile cache is a Redis hash with one field per JSON attribute of the
// sanitized member. Each field value is the attribute's JSON encoding.

func encodeProfile(m models.Member) (map[string]string, error) {
	raw, err := json.Marshal(m.Sanitized())
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	fields := make(map[string]string, len(attrs))
	for k, v := range attrs {
		fields[k] = string(v)
	}
	return fields, nil
}

func decodeProfile(fields map[string]string) (*models.Member, error) {
	attrs := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("decode profile field %q: invalid json", k)
		}
		attrs[k] = json.RawMessage(v)
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	var m models.Member
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &m, nil
}
