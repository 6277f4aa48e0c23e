// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publish validates the conversion script's JSON output and
// publishes it into the static asset directory.
package publish

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"
)

const indent = "  "

var (
	// ErrNoOutput reports that the output file is absent, unreadable or empty.
	ErrNoOutput = errors.New("no output")

	// ErrMalformed reports output that is not valid JSON.
	ErrMalformed = errors.New("malformed JSON")

	// ErrEmpty reports valid JSON whose list field is missing, not a list of
	// objects, or empty.
	ErrEmpty = errors.New("no records")
)

// Document is a validated output document.
type Document struct {
	// Raw is the original JSON text. Key order and string escapes are kept
	// as the converter wrote them.
	Raw []byte

	// ListField is the key that held the records.
	ListField string

	// Records are the elements of the list field, one raw JSON object each.
	Records []json.RawMessage
}

// Count returns the number of records in the document.
func (d Document) Count() int {
	return len(d.Records)
}

// Load reads the output file at path. A missing, unreadable or
// whitespace-only file yields ErrNoOutput.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoOutput)
		}
		return nil, fmt.Errorf("reading %s: %w: %v", path, ErrNoOutput, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", path, ErrNoOutput)
	}
	return data, nil
}

// replacementChar stands in for byte sequences that are not valid UTF-8.
var replacementChar = []byte("\uFFFD")

// Validate parses data and checks that listField holds a non-empty list of
// objects. Invalid UTF-8 is replaced with U+FFFD so the published document
// is always valid JSON text.
func Validate(data []byte, listField string) (Document, error) {
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, replacementChar)
	}

	var top any
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Document{}, fmt.Errorf("%w: top level is not an object", ErrEmpty)
	}

	raw, ok := fields[listField]
	if !ok {
		return Document{}, fmt.Errorf("%w: field %q missing", ErrEmpty, listField)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return Document{}, fmt.Errorf("%w: field %q is not a list", ErrEmpty, listField)
	}
	if len(records) == 0 {
		return Document{}, fmt.Errorf("%w: field %q is empty", ErrEmpty, listField)
	}
	for i, rec := range records {
		if t := bytes.TrimSpace(rec); len(t) == 0 || t[0] != '{' {
			return Document{}, fmt.Errorf("%w: %s[%d] is not an object", ErrEmpty, listField, i)
		}
	}

	return Document{Raw: data, ListField: listField, Records: records}, nil
}

// Format returns the document pretty-printed with two-space indentation and
// a trailing newline.
func Format(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(doc.Raw), "", indent); err != nil {
		return nil, fmt.Errorf("formatting document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Artifact describes a published file.
type Artifact struct {
	Path    string
	Size    int
	SHA256  string
	Records int
}

// Write formats doc and replaces the file at path with it. The destination
// directory is created when missing. The new content is written to a
// temporary file in the same directory and renamed over path, so readers
// never observe a partial file.
func Write(path string, doc Document) (Artifact, error) {
	data, err := Format(doc)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return Artifact{
		Path:    path,
		Size:    len(data),
		SHA256:  hex.EncodeToString(sum[:]),
		Records: doc.Count(),
	}, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
