package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// fieldKind selects how a raw payload value is coerced.
type fieldKind int

const (
	kindPlainText fieldKind = iota
	kindRichText
	kindInt
	kindFloat
	kindBool
	kindIntList
)

// fieldRule binds a payload key to its coercion and the Popup field it sets.
// A rule is only applied when the value coerces; otherwise the default from
// DefaultPopup stays in place.
type fieldRule struct {
	name string
	kind fieldKind
	set  func(p *Popup, v fieldValue)
}

type fieldValue struct {
	text string
	num  int
	flt  float64
	flag bool
	list []int
}

var popupSchema = []fieldRule{
	{"id", kindPlainText, func(p *Popup, v fieldValue) { p.ID = v.text }},
	{"title", kindRichText, func(p *Popup, v fieldValue) { p.Title = v.text }},
	{"content", kindRichText, func(p *Popup, v fieldValue) { p.Content = v.text }},
	{"displayFrequency", kindPlainText, func(p *Popup, v fieldValue) {
		if v.text != "" {
			p.DisplayFrequency = DisplayFrequency(v.text)
		}
	}},
	{"openingDelay", kindInt, func(p *Popup, v fieldValue) {
		if v.num >= 0 {
			p.OpeningDelay = v.num
		}
	}},
	{"buttonEnabled", kindBool, func(p *Popup, v fieldValue) { p.ButtonEnabled = v.flag }},
	{"buttonLabel", kindPlainText, func(p *Popup, v fieldValue) { p.ButtonLabel = v.text }},
	{"buttonURL", kindPlainText, func(p *Popup, v fieldValue) { p.ButtonURL = v.text }},
	{"buttonBackgroundColor", kindPlainText, func(p *Popup, v fieldValue) {
		if v.text != "" {
			p.ButtonBackgroundColor = v.text
		}
	}},
	{"buttonTextColor", kindPlainText, func(p *Popup, v fieldValue) {
		if v.text != "" {
			p.ButtonTextColor = v.text
		}
	}},
	{"backdropColor", kindPlainText, func(p *Popup, v fieldValue) {
		if v.text != "" {
			p.BackdropColor = v.text
		}
	}},
	{"backdropOpacity", kindFloat, func(p *Popup, v fieldValue) {
		p.BackdropOpacity = math.Min(100, math.Max(0, v.flt))
	}},
	{"maxWidth", kindInt, func(p *Popup, v fieldValue) {
		if v.num >= 0 {
			p.MaxWidth = v.num
		}
	}},
	{"roundedCornersEnabled", kindBool, func(p *Popup, v fieldValue) { p.RoundedCornersEnabled = v.flag }},
	{"showOnAllPages", kindBool, func(p *Popup, v fieldValue) { p.ShowOnAllPages = v.flag }},
	{"showOnThesePages", kindIntList, func(p *Popup, v fieldValue) { p.ShowOnThesePages = v.list }},
	{"testModeEnabled", kindBool, func(p *Popup, v fieldValue) { p.TestModeEnabled = v.flag }},
	{"deactivated", kindBool, func(p *Popup, v fieldValue) { p.Deactivated = v.flag }},
}

// DefaultPopup returns a record carrying every documented default.
func DefaultPopup() Popup {
	return Popup{
		DisplayFrequency:      DefaultDisplayFrequency,
		OpeningDelay:          DefaultOpeningDelay,
		ButtonBackgroundColor: DefaultButtonBackgroundColor,
		ButtonTextColor:       DefaultButtonTextColor,
		BackdropColor:         DefaultBackdropColor,
		BackdropOpacity:       DefaultBackdropOpacity,
		MaxWidth:              DefaultMaxWidth,
		RoundedCornersEnabled: true,
		ShowOnAllPages:        true,
		ShowOnThesePages:      []int{},
	}
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	case float64:
		return int(t), true
	case int:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	}
	return 0, false
}

func coerceFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b, true
		}
		return t != "" && t != "0", true
	}
	return false, false
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

// coerceIntList converts every entry independently; entries that are not
// numeric become 0 rather than being dropped.
func coerceIntList(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, _ := coerceInt(item)
		out[i] = n
	}
	return out, true
}
