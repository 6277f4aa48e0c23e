package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Catalog is the published bot catalog consumed by the web front end.
type Catalog struct {
	Packages []Package `json:"packages" yaml:"packages"`
}

// Package groups categories under a main title.
type Package struct {
	Name       string     `json:"package" yaml:"package"`
	ID         int        `json:"packageId,omitempty" yaml:"packageId,omitempty"`
	Categories []Category `json:"categories" yaml:"categories"`
}

// Category groups bots under a sub title.
type Category struct {
	Name string `json:"category" yaml:"category"`
	Bots []Bot  `json:"bots" yaml:"bots"`
}

// Bot is a single catalog entry. The converters emit the same values under
// several Arabic and English aliases, so entries are kept as loose fields and
// read through alias lists. Keys records the field order of the document.
type Bot struct {
	Fields map[string]any
	Keys   []string
}

// NewBot builds a Bot from alternating keys and values, keeping their order.
func NewBot(kv ...any) Bot {
	b := Bot{Fields: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		b.set(kv[i].(string), kv[i+1])
	}
	return b
}

func (b *Bot) set(key string, v any) {
	if _, ok := b.Fields[key]; !ok {
		b.Keys = append(b.Keys, key)
	}
	b.Fields[key] = v
}

// Get returns the value stored under key, or nil.
func (b Bot) Get(key string) any {
	return b.Fields[key]
}

// Title returns the bot's display title.
func (b Bot) Title() string {
	s, _ := b.Fields["botTitle"].(string)
	return s
}

// UnmarshalJSON decodes a JSON object, recording its keys in document order.
// A repeated key keeps its first position and its last value.
func (b *Bot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("bot: expected a JSON object")
	}

	*b = Bot{Fields: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("bot: unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("bot field %q: %w", key, err)
		}
		b.set(key, v)
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the fields in Keys order.
func (b Bot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(b.Fields[k])
		if err != nil {
			return nil, fmt.Errorf("bot field %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
