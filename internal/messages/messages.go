// Package messages provides the canned reply catalog for PennyChat.
//
// Replies are grouped into named collections of text variants. A
// collection can pick a uniform-random variant or a positional variant
// with a fallback, substituting {{name}} placeholders either way.
package messages

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var rawCatalog []byte

// placeholderPattern matches {{name}} markers, with optional surrounding
// whitespace inside the braces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9]+)\s*\}\}`)

// Placeholders maps placeholder names to their substitution values.
type Placeholders map[string]string

// Collection is a named list of reply text variants.
type Collection struct {
	variants []string
}

// NewCollection builds a collection from the given variants.
func NewCollection(variants ...string) *Collection {
	return &Collection{variants: variants}
}

// Len returns the number of variants in the collection.
func (c *Collection) Len() int {
	return len(c.variants)
}

// Any picks a uniform-random variant and substitutes placeholders. An
// empty collection renders as an empty string.
func (c *Collection) Any(placeholders Placeholders) string {
	if len(c.variants) == 0 {
		return ""
	}
	return render(c.variants[rand.IntN(len(c.variants))], placeholders)
}

// Get picks the variant at index i, or the fallback text once i is past
// the last variant, and substitutes placeholders.
func (c *Collection) Get(i int, fallback string, placeholders Placeholders) string {
	if i < 0 || i >= len(c.variants) {
		return render(fallback, placeholders)
	}
	return render(c.variants[i], placeholders)
}

// render substitutes {{name}} markers with their placeholder values.
// Unresolved placeholders render as empty strings, never as literal
// markers.
func render(text string, placeholders Placeholders) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		return placeholders[name]
	})
}

// Catalog is the full set of named reply collections.
type Catalog struct {
	collections map[string]*Collection
}

// Load parses the embedded YAML catalog.
func Load() (*Catalog, error) {
	var parsed map[string][]string
	if err := yaml.Unmarshal(rawCatalog, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}

	collections := make(map[string]*Collection, len(parsed))
	for key, variants := range parsed {
		collections[key] = &Collection{variants: variants}
	}
	return &Catalog{collections: collections}, nil
}

// MustLoad is Load for composition roots where a broken embedded catalog
// is unrecoverable.
func MustLoad() *Catalog {
	cat, err := Load()
	if err != nil {
		panic(err)
	}
	return cat
}

// Collection returns the named collection. Unknown keys yield an empty
// collection rather than nil, so call sites never need a nil check.
func (cat *Catalog) Collection(key string) *Collection {
	if c, ok := cat.collections[key]; ok {
		return c
	}
	return &Collection{}
}
