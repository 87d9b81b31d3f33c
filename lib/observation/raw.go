package observation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Raw is one upstream record. It keeps the exact encoding it was decoded
// from so it can be written back out without loss or key reordering.
type Raw struct {
	Fields map[string]any
	source json.RawMessage
}

func NewRaw(fields map[string]any) Raw {
	return Raw{Fields: fields}
}

func (r *Raw) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	err := dec.Decode(&fields)
	if err != nil {
		return fmt.Errorf("decode raw record: %w", err)
	}
	r.Fields = fields
	r.source = append(json.RawMessage(nil), data...)
	return nil
}

func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r.source) > 0 {
		return r.source, nil
	}
	return json.Marshal(r.Fields)
}

// Get is a nil-safe lookup into the decoded fields.
func (r Raw) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// String returns a field as text, "" when missing.
func (r Raw) String(key string) string {
	return stringValue(r.Fields[key])
}

// DecodeRaws decodes a JSON array of records.
func DecodeRaws(data []byte) ([]Raw, error) {
	var records []Raw
	err := json.Unmarshal(data, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}
