package taplist

import (
	"bytes"
	"encoding/json"

	perr "taplist/internal/platform/errors"
)

// Brew is one tap-list record. Known fields are typed; everything else the
// upstream sends rides along in Extra verbatim so API responses can merge
// enrichment data without losing upstream shape
type Brew struct {
	ID            string
	Name          string
	Brewer        string
	Description   string
	ContainerType string
	Extra         map[string]json.RawMessage
}

// known field keys, removed from Extra at decode time
const (
	keyID            = "id"
	keyName          = "brew_name"
	keyBrewer        = "brewer"
	keyDescription   = "brew_description"
	keyContainerType = "container_type"
)

// UnmarshalJSON decodes a record duck-typed: id may arrive as a string or a
// number, unknown keys are preserved
func (b *Brew) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	b.ID = rawString(m[keyID])
	b.Name = rawString(m[keyName])
	b.Brewer = rawString(m[keyBrewer])
	b.Description = rawString(m[keyDescription])
	b.ContainerType = rawString(m[keyContainerType])
	delete(m, keyID)
	delete(m, keyName)
	delete(m, keyBrewer)
	delete(m, keyDescription)
	delete(m, keyContainerType)
	if len(m) > 0 {
		b.Extra = m
	} else {
		b.Extra = nil
	}
	return nil
}

// MarshalJSON re-merges typed fields with the passthrough map. Optional
// fields are omitted when empty, matching how the upstream omits them
func (b Brew) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.AsMap())
}

// AsMap returns the merged raw view of the record. Callers may add keys
// (enrichment fields) before marshaling; the map is freshly allocated
func (b Brew) AsMap() map[string]json.RawMessage {
	m := make(map[string]json.RawMessage, len(b.Extra)+5)
	for k, v := range b.Extra {
		m[k] = v
	}
	m[keyID] = mustRaw(b.ID)
	m[keyName] = mustRaw(b.Name)
	if b.Brewer != "" {
		m[keyBrewer] = mustRaw(b.Brewer)
	}
	if b.Description != "" {
		m[keyDescription] = mustRaw(b.Description)
	}
	if b.ContainerType != "" {
		m[keyContainerType] = mustRaw(b.ContainerType)
	}
	return m
}

// ParseTaplist decodes the upstream payload: an untyped array whose one
// element carries brewInStock, or a bare object with the same key. Records
// missing an id or name are dropped at this boundary
func ParseTaplist(body []byte) ([]Brew, error) {
	raw, err := findBrewInStock(body)
	if err != nil {
		return nil, err
	}
	var brews []Brew
	if err := json.Unmarshal(raw, &brews); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "taplist decode brews failed")
	}
	out := brews[:0]
	for _, b := range brews {
		if b.ID == "" || b.Name == "" {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func findBrewInStock(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, perr.Upstreamf("taplist empty response")
	}

	if trimmed[0] == '[' {
		var nodes []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "taplist decode envelope failed")
		}
		for _, n := range nodes {
			if raw, ok := n["brewInStock"]; ok {
				return raw, nil
			}
		}
		return nil, perr.Upstreamf("taplist payload missing brewInStock")
	}

	var node map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &node); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "taplist decode envelope failed")
	}
	if raw, ok := node["brewInStock"]; ok {
		return raw, nil
	}
	return nil, perr.Upstreamf("taplist payload missing brewInStock")
}

// rawString reads a JSON scalar as a string: quoted strings unquote, numbers
// keep their literal text, null and absent are empty
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// mustRaw encodes a string; json.Marshal cannot fail on a string value
func mustRaw(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
