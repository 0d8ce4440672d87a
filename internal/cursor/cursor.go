// Package cursor implements the opaque continuation tokens handed out by
// paginated reads. A token is a small versioned struct, base64-encoded JSON;
// callers pass it back verbatim and never construct one by hand.
package cursor

import (
	"encoding/base64"
	"encoding/json"

	"github.com/storeforge/catalog-engine/internal/apperr"
)

const version = 1

// Token binds a resume point to the query that produced it. Kind names the
// query family (sorted list, filtered list, search phase); Key pins the
// query parameter the ordering depends on (sort field, search keyword), so a
// token cannot be replayed against a query with a different order.
type Token struct {
	V    int    `json:"v"`
	Kind string `json:"k"`
	Key  string `json:"key,omitempty"`
	Sort any    `json:"s,omitempty"`
	ID   string `json:"id"`
}

func Encode(kind, key string, sort any, id string) string {
	raw, _ := json.Marshal(Token{V: version, Kind: kind, Key: key, Sort: sort, ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses raw and rejects tokens whose version or key differ, or whose
// kind is not one of kinds. An empty raw is not an error; it returns nil so
// callers can treat "no cursor" uniformly.
func Decode(raw, key string, kinds ...string) (*Token, error) {
	if raw == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, apperr.Invalid("malformed cursor")
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperr.Invalid("malformed cursor")
	}
	if t.V != version || t.ID == "" {
		return nil, apperr.Invalid("malformed cursor")
	}
	if t.Key != key {
		return nil, apperr.Invalid("cursor does not match this query")
	}
	for _, k := range kinds {
		if t.Kind == k {
			return &t, nil
		}
	}
	return nil, apperr.Invalid("cursor does not match this query")
}
