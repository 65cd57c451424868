package core

import (
	"bytes"
	"encoding/json"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer normalizes untrusted popup payloads into canonical records.
// It is safe for concurrent use.
type Sanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewSanitizer builds a sanitizer allowing a user-generated-content subset of
// HTML in title and content, and no markup anywhere else.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rich:  bluemonday.UGCPolicy(),
		plain: bluemonday.StrictPolicy(),
	}
}

// Sanitize decodes raw and normalizes it. raw may be a JSON object or a JSON
// string holding one.
func (s *Sanitizer) Sanitize(raw json.RawMessage) (Popup, error) {
	fields, err := decodePayload(raw)
	if err != nil {
		return Popup{}, err
	}
	return s.SanitizeFields(fields)
}

// SanitizeFields normalizes an already decoded payload. Every field except
// title falls back to its default when absent or malformed.
func (s *Sanitizer) SanitizeFields(fields map[string]any) (Popup, error) {
	p := DefaultPopup()
	for _, rule := range popupSchema {
		raw, ok := fields[rule.name]
		if !ok || raw == nil {
			continue
		}
		var v fieldValue
		switch rule.kind {
		case kindPlainText:
			text, ok := coerceString(raw)
			if !ok {
				continue
			}
			v.text = s.PlainText(text)
		case kindRichText:
			text, ok := coerceString(raw)
			if !ok {
				continue
			}
			v.text = s.RichText(text)
		case kindInt:
			if v.num, ok = coerceInt(raw); !ok {
				continue
			}
		case kindFloat:
			if v.flt, ok = coerceFloat(raw); !ok {
				continue
			}
		case kindBool:
			if v.flag, ok = coerceBool(raw); !ok {
				continue
			}
		case kindIntList:
			if v.list, ok = coerceIntList(raw); !ok {
				continue
			}
		}
		rule.set(&p, v)
	}
	if p.Title == "" {
		return Popup{}, &ValidationError{Field: "title", Message: "title is required"}
	}
	return p, nil
}

// RichText strips markup outside the allowed rich-text subset.
func (s *Sanitizer) RichText(in string) string {
	return strings.TrimSpace(s.rich.Sanitize(in))
}

// plainEntities restores the entities the strict policy adds for ordinary
// text. Angle brackets stay escaped so the result never carries markup.
var plainEntities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&quot;", `"`)

// PlainText strips all markup, including markup hidden behind entities, and
// collapses whitespace. Its output is a fixed point: PlainText(PlainText(x))
// equals PlainText(x).
func (s *Sanitizer) PlainText(in string) string {
	out := plainEntities.Replace(s.plain.Sanitize(unescapeAll(in)))
	return strings.Join(strings.Fields(out), " ")
}

// unescapeAll decodes entities until the text stops changing, so nested
// encodings like &amp;lt; cannot survive one pass.
func unescapeAll(in string) string {
	for i := 0; i < 8; i++ {
		out := html.UnescapeString(in)
		if out == in {
			break
		}
		in = out
	}
	return in
}

func decodePayload(raw json.RawMessage) (map[string]any, error) {
	missing := &ValidationError{Field: "popup", Message: "popup details required"}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, missing
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, missing
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return nil, missing
		}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, &ValidationError{Field: "popup", Message: "popup details must be a JSON object"}
	}
	return fields, nil
}
