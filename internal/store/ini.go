package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// ini document model
// ---------------------------------------------------------------------------

type entry struct {
	key   string
	value string
}

// iniSection holds the name of a section and its entries in file order.
type iniSection struct {
	name    string
	entries []entry
}

// document is an ordered list of sections. Keys that appear before the first
// section header are kept in an unnamed leading section.
type document struct {
	sections []*iniSection
}

func (d *document) section(name string) *iniSection {
	for _, s := range d.sections {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (d *document) get(section, key string) (string, bool, error) {
	s := d.section(section)
	if s == nil {
		return "", false, nil
	}
	for _, e := range s.entries {
		if e.key == key {
			return e.value, true, nil
		}
	}
	return "", false, nil
}

func (d *document) set(section, key, value string) {
	s := d.section(section)
	if s == nil {
		s = &iniSection{name: section}
		d.sections = append(d.sections, s)
	}
	for i := range s.entries {
		if s.entries[i].key == key {
			s.entries[i].value = value
			return
		}
	}
	s.entries = append(s.entries, entry{key: key, value: value})
}

// parse reads a [section]-style ini document. Blank lines and lines starting
// with ';' or '#' are ignored, as are lines without '='. Later duplicates of
// a key overwrite earlier ones.
func parse(r io.Reader) (*document, error) {
	doc := &document{}
	var current *iniSection

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			current = doc.section(name)
			if current == nil {
				current = &iniSection{name: name}
				doc.sections = append(doc.sections, current)
			}
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		if current == nil {
			current = &iniSection{}
			doc.sections = append(doc.sections, current)
		}
		key := strings.TrimSpace(line[:idx])
		val := stripQuotes(strings.TrimSpace(line[idx+1:]))
		doc.set(current.name, key, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ini: %w", err)
	}
	return doc, nil
}

// encode renders the document with one blank line between sections.
func (d *document) encode() []byte {
	var buf bytes.Buffer
	for i, s := range d.sections {
		if i > 0 {
			buf.WriteByte('\n')
		}
		if s.name != "" {
			fmt.Fprintf(&buf, "[%s]\n", s.name)
		}
		for _, e := range s.entries {
			fmt.Fprintf(&buf, "%s = %s\n", e.key, quote(e.value))
		}
	}
	return buf.Bytes()
}

// quote wraps values whose edges would not survive parsing: surrounding
// whitespace, or a leading or trailing double quote.
func quote(v string) string {
	if v != strings.TrimSpace(v) || strings.HasPrefix(v, `"`) || strings.HasSuffix(v, `"`) {
		return `"` + v + `"`
	}
	return v
}

// stripQuotes removes one pair of surrounding double quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
