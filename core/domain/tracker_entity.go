package domain

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// =============================================================================
// Entity - extracted value with provenance
// =============================================================================

type EntitySource string

const (
	EntitySourceEmail EntitySource = "email"
	EntitySourceUser  EntitySource = "user"
	EntitySourceML    EntitySource = "ml"
)

// UnknownValue is the sentinel value for an entity nobody could determine.
const UnknownValue = "Unknown"

type Entity struct {
	Value      string       `json:"value" bson:"value"`
	Confidence float64      `json:"confidence" bson:"confidence"`
	Source     EntitySource `json:"source" bson:"source"`
}

// UnknownEntity returns the sentinel entity.
func UnknownEntity() Entity {
	return Entity{Value: UnknownValue, Confidence: 0, Source: EntitySourceEmail}
}

// IsUnknown reports whether the entity carries no usable value.
func (e Entity) IsUnknown() bool {
	v := strings.TrimSpace(e.Value)
	return v == "" || v == UnknownValue
}

// UserEntity wraps a user-supplied value.
func UserEntity(value string) Entity {
	value = strings.TrimSpace(value)
	if value == "" {
		return UnknownEntity()
	}
	return Entity{Value: value, Confidence: 1, Source: EntitySourceUser}
}

// CoerceEntity accepts either a bare JSON string or an entity object.
// A bare string becomes a user entity with full confidence.
func CoerceEntity(raw json.RawMessage) (Entity, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return UnknownEntity(), nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Entity{}, err
		}
		return UserEntity(s), nil
	}

	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entity{}, err
	}
	e.Value = strings.TrimSpace(e.Value)
	if e.Value == "" {
		return UnknownEntity(), nil
	}
	if e.Source == "" {
		e.Source = EntitySourceUser
	}
	if e.Confidence < 0 {
		e.Confidence = 0
	}
	if e.Confidence > 1 {
		e.Confidence = 1
	}
	return e, nil
}
