package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ref is the id of another marketplace document. The backend returns
// references either as a bare id or as a populated document; both decode
// to the id.
type Ref string

type populatedRef struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
}

func (p populatedRef) normalizedID() string {
	if id := strings.TrimSpace(p.MongoID); id != "" {
		return id
	}
	return strings.TrimSpace(p.ID)
}

// UnmarshalJSON accepts a string, a populated object or null.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(strings.TrimSpace(s))
		return nil
	case '{':
		var p populatedRef
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode populated reference: %w", err)
		}
		*r = Ref(p.normalizedID())
		return nil
	default:
		return fmt.Errorf("unsupported reference value %s", string(data))
	}
}

func (r Ref) String() string { return string(r) }

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r == "" }

// Karat is a purity value that arrives as either a string ("18") or a
// number (18) on the wire.
type Karat string

// UnmarshalJSON accepts a JSON string or number.
func (k *Karat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Karat(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode karat: %w", err)
	}
	*k = Karat(n.String())
	return nil
}

// KaratFromInt builds a Karat from a whole number.
func KaratFromInt(v int) Karat {
	return Karat(strconv.Itoa(v))
}
