// Package i18n holds the Tamil and English interface strings.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lang is an interface language.
type Lang string

const (
	Tamil   Lang = "ta"
	English Lang = "en"

	// Default is the language used before a visitor picks one.
	Default = Tamil
)

// Langs lists the supported languages.
var Langs = []Lang{Tamil, English}

// Parse returns the Lang for s and whether it is supported.
func Parse(s string) (Lang, bool) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case Tamil:
		return Tamil, true
	case English:
		return English, true
	}
	return Default, false
}

// Other returns the language to offer as a switch.
func (l Lang) Other() Lang {
	if l == English {
		return Tamil
	}
	return English
}

//go:embed locales/*.yaml
var locales embed.FS

// Bundle maps dotted keys to text per language.
type Bundle struct {
	messages map[Lang]map[string]string
}

// Load reads the embedded locale files.
func Load() (*Bundle, error) {
	b := &Bundle{messages: make(map[Lang]map[string]string)}
	for _, l := range Langs {
		data, err := locales.ReadFile(path.Join("locales", string(l)+".yaml"))
		if err != nil {
			return nil, err
		}
		if err := b.Add(l, data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add merges a YAML document of nested keys into lang.
func (b *Bundle) Add(lang Lang, data []byte) error {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("i18n %s: %w", lang, err)
	}
	if b.messages[lang] == nil {
		b.messages[lang] = make(map[string]string)
	}
	flatten("", tree, b.messages[lang])
	return nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case nil:
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

// T returns the text for key in lang, falling back to English and then to
// the key itself.
func (b *Bundle) T(lang Lang, key string) string {
	if s, ok := b.messages[lang][key]; ok {
		return s
	}
	if s, ok := b.messages[English][key]; ok {
		return s
	}
	return key
}

// Keys lists every key defined for lang.
func (b *Bundle) Keys(lang Lang) []string {
	keys := make([]string, 0, len(b.messages[lang]))
	for k := range b.messages[lang] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
