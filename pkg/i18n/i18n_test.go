package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalesCoverTheSameKeys(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	en := b.Keys(English)
	require.NotEmpty(t, en)
	ta := map[string]bool{}
	for _, k := range b.Keys(Tamil) {
		ta[k] = true
	}
	for _, k := range en {
		if k == "footer.text" {
			continue
		}
		assert.True(t, ta[k], "missing Tamil text for %s", k)
	}
}

func TestTFallsBack(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "உலாவு", b.T(Tamil, "nav.browse"))
	assert.Equal(t, "Browse", b.T(English, "nav.browse"))
	// Defined only in English.
	assert.Equal(t, "Made with love for Tamil literature.", b.T(Tamil, "footer.text"))
	assert.Equal(t, "no.such.key", b.T(English, "no.such.key"))
}

func TestAddMergesNestedKeys(t *testing.T) {
	b := &Bundle{messages: map[Lang]map[string]string{}}
	require.NoError(t, b.Add(English, []byte("a:\n  b:\n    c: deep\n  n: 3\n")))
	assert.Equal(t, "deep", b.T(English, "a.b.c"))
	assert.Equal(t, "3", b.T(English, "a.n"))
	assert.Error(t, b.Add(English, []byte(":\n  - [")))
}

func TestParse(t *testing.T) {
	l, ok := Parse(" EN ")
	assert.True(t, ok)
	assert.Equal(t, English, l)
	l, ok = Parse("fr")
	assert.False(t, ok)
	assert.Equal(t, Default, l)
	assert.Equal(t, English, Tamil.Other())
	assert.Equal(t, Tamil, English.Other())
}
