package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeforge/catalog-engine/internal/apperr"
)

func TestRoundTrip(t *testing.T) {
	raw := Encode("list", "price:asc", 19.99, "prod-7")
	tok, err := Decode(raw, "price:asc", "list")
	require.NoError(t, err)
	assert.Equal(t, "list", tok.Kind)
	assert.Equal(t, 19.99, tok.Sort)
	assert.Equal(t, "prod-7", tok.ID)
}

func TestEmptyCursorIsNotAnError(t *testing.T) {
	tok, err := Decode("", "anything", "list")
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestRejectsMalformed(t *testing.T) {
	_, err := Decode("not base64 json!!", "k", "list")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestRejectsWrongKind(t *testing.T) {
	raw := Encode("flt", "", nil, "prod-1")
	_, err := Decode(raw, "", "list")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestRejectsWrongKey(t *testing.T) {
	// A cursor minted for one keyword must not replay against another.
	raw := Encode("pfx", "shoe", "shoe rack", "prod-1")
	_, err := Decode(raw, "sock", "pfx")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestAcceptsAnyAllowedKind(t *testing.T) {
	raw := Encode("pfx", "shoe", "shoe rack", "prod-1")
	tok, err := Decode(raw, "shoe", "tok", "pfx")
	require.NoError(t, err)
	assert.Equal(t, "pfx", tok.Kind)
}
