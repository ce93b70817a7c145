package respcache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	args := map[string]any{
		"language": "en",
		"tier":     "CHALLENGER",
		"limit":    float64(20),
	}

	first := DeriveKey("champions", args, "")
	second := DeriveKey("champions", args, "")
	assert.Equal(t, first, second)
}

func TestDeriveKeyIgnoresFieldOrder(t *testing.T) {
	// Maps built in different insertion orders must canonicalize to
	// the same key.
	a := map[string]any{}
	a["language"] = "ko"
	a["patch"] = "14.12"
	a["count"] = float64(5)

	b := map[string]any{}
	b["count"] = float64(5)
	b["patch"] = "14.12"
	b["language"] = "ko"

	assert.Equal(t, DeriveKey("matches", a, ""), DeriveKey("matches", b, ""))
}

func TestDeriveKeyDropsNullArgs(t *testing.T) {
	withNull := map[string]any{"language": "en", "tier": nil}
	withoutNull := map[string]any{"language": "en"}

	assert.Equal(t,
		DeriveKey("summoner", withNull, ""),
		DeriveKey("summoner", withoutNull, ""))
}

func TestDeriveKeyDistinguishesArgs(t *testing.T) {
	base := DeriveKey("champions", map[string]any{"language": "en"}, "")
	other := DeriveKey("champions", map[string]any{"language": "ko"}, "")
	assert.NotEqual(t, base, other)
}

func TestDeriveKeyDistinguishesOperations(t *testing.T) {
	args := map[string]any{"id": "TFT14_Jinx"}
	assert.NotEqual(t,
		DeriveKey("champion", args, ""),
		DeriveKey("champions", args, ""))
}

func TestDeriveKeyPrincipalIsolation(t *testing.T) {
	args := map[string]any{"region": "kr"}

	anon := DeriveKey("summoner", args, "")
	alice := DeriveKey("summoner", args, "user-alice")
	bob := DeriveKey("summoner", args, "user-bob")

	assert.NotEqual(t, anon, alice)
	assert.NotEqual(t, alice, bob)
}

func TestDeriveKeyShape(t *testing.T) {
	key := DeriveKey("champions", map[string]any{"language": "en"}, "")

	parts := strings.SplitN(key, ":", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "champions", parts[0], "operation stays in clear text")
	assert.Len(t, parts[1], keyDigestLen)
	assert.NotContains(t, parts[1], "en", "arguments must not leak into the key")
}

func TestDeriveKeyNestedStructures(t *testing.T) {
	nested := func(order []string) map[string]any {
		filter := map[string]any{}
		for _, k := range order {
			switch k {
			case "tiers":
				filter["tiers"] = []any{"GOLD", "PLATINUM"}
			case "minGames":
				filter["minGames"] = float64(10)
			}
		}
		return map[string]any{"filter": filter, "region": "euw"}
	}

	assert.Equal(t,
		DeriveKey("matches", nested([]string{"tiers", "minGames"}), ""),
		DeriveKey("matches", nested([]string{"minGames", "tiers"}), ""))

	// Array order is significant.
	swapped := map[string]any{
		"filter": map[string]any{"tiers": []any{"PLATINUM", "GOLD"}, "minGames": float64(10)},
		"region": "euw",
	}
	assert.NotEqual(t,
		DeriveKey("matches", nested([]string{"tiers", "minGames"}), ""),
		DeriveKey("matches", swapped, ""))
}

func TestDeriveKeyEmptyArgs(t *testing.T) {
	assert.Equal(t,
		DeriveKey("traits", nil, ""),
		DeriveKey("traits", map[string]any{}, ""))
}
