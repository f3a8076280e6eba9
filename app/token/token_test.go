package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{name: "even", length: 10},
		{name: "odd", length: 7},
		{name: "single", length: 1},
		{name: "long", length: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Hex(tt.length)
			assert.Len(t, res, tt.length)
			assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+$`), res)
		})
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := map[string]bool{}
	probe := func(candidate string) bool { return seen[candidate] }

	for i := 0; i < 1000; i++ {
		res := Generate(probe, 10)
		require.False(t, seen[res], "collision on iteration %d", i)
		seen[res] = true
	}
	assert.Len(t, seen, 1000)
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	calls := 0
	probe := func(string) bool {
		calls++
		return calls <= 3 // first three candidates reported taken
	}
	res := Generate(probe, 10)
	assert.Len(t, res, 10)
	assert.Equal(t, 4, calls)
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	probe := func(candidate string) bool { return seen[candidate] }

	re := regexp.MustCompile(`^[A-Za-z0-9]{6}$`)
	for i := 0; i < 1000; i++ {
		res := GenerateCode(probe, 6)
		require.Regexp(t, re, res)
		require.False(t, seen[res], "collision on iteration %d", i)
		seen[res] = true
	}
}

func TestAccessKey(t *testing.T) {
	k1, k2 := AccessKey(), AccessKey()
	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)
}
