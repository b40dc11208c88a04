// Package querysymbol renders the short symbol that tags each query on the
// resource summary page ("a", "b", ...).
package querysymbol

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"resource-summary-ui/internal/querylabel"
)

// NewInputStyleFeature is the capability that switches symbols to CurrentStyle.
const NewInputStyleFeature = "new-input-style"

// Variant selects the visual treatment of a symbol.
type Variant int

const (
	LegacyStyle Variant = iota
	CurrentStyle
)

func (v Variant) String() string {
	switch v {
	case CurrentStyle:
		return "current"
	default:
		return "legacy"
	}
}

// MarshalText lets variants appear as strings in JSON payloads.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Capabilities answers feature-flag lookups for an organization.
type Capabilities interface {
	Enabled(ctx context.Context, org, feature string) (bool, error)
}

// ResolveVariant asks caps once for the new-input-style capability. A nil
// collaborator or a failed lookup yields LegacyStyle; the error is still returned.
func ResolveVariant(ctx context.Context, caps Capabilities, org string) (Variant, error) {
	if caps == nil {
		return LegacyStyle, nil
	}
	on, err := caps.Enabled(ctx, org, NewInputStyleFeature)
	if err != nil {
		return LegacyStyle, fmt.Errorf("resolve symbol variant: %w", err)
	}
	if on {
		return CurrentStyle, nil
	}
	return LegacyStyle, nil
}

// Options are caller-supplied rendering parameters.
type Options struct {
	Class string
	Size  string
	Title string
}

// Symbol is one rendered query symbol.
type Symbol struct {
	QueryID int           `json:"query_id"`
	Label   string        `json:"label"`
	Variant Variant       `json:"variant"`
	HTML    template.HTML `json:"html"`
}

var symbolTemplates = func() *template.Template {
	t := template.Must(template.New("legacy").Parse(
		`<span class="query-symbol query-symbol--legacy{{with .Class}} {{.}}{{end}}"{{with .Title}} title="{{.}}"{{end}}>{{.Label}}</span>`,
	))
	return template.Must(t.New("current").Parse(
		`<span class="query-symbol query-symbol--current{{with .Size}} query-symbol--{{.}}{{end}}{{with .Class}} {{.}}{{end}}" data-query="{{.Label}}"{{with .Title}} title="{{.}}"{{end}}><span class="query-symbol__text">{{.Label}}</span></span>`,
	))
}()

// Render produces the symbol for queryID. ok is false for negative ids, which
// mean the caller wants the symbol hidden.
func Render(queryID int, variant Variant, opts Options) (Symbol, bool, error) {
	if queryID < 0 {
		return Symbol{}, false, nil
	}
	label, err := querylabel.Label(queryID)
	if err != nil {
		return Symbol{}, false, err
	}

	name := "legacy"
	if variant == CurrentStyle {
		name = "current"
	}
	var buf bytes.Buffer
	err = symbolTemplates.Lookup(name).Execute(&buf, struct {
		Options
		Label string
	}{Options: opts, Label: label})
	if err != nil {
		return Symbol{}, false, fmt.Errorf("render symbol %q: %w", label, err)
	}

	return Symbol{
		QueryID: queryID,
		Label:   label,
		Variant: variant,
		HTML:    template.HTML(buf.String()),
	}, true, nil
}

// RenderAll renders ids in order, dropping hidden ones. The returned hidden
// slice lists the ids that were suppressed.
func RenderAll(ids []int, variant Variant, opts Options) ([]Symbol, []int, error) {
	out := make([]Symbol, 0, len(ids))
	var hidden []int
	for _, id := range ids {
		sym, ok, err := Render(id, variant, opts)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			hidden = append(hidden, id)
			continue
		}
		out = append(out, sym)
	}
	return out, hidden, nil
}

// ParseVariant accepts "legacy" or "current" (case-insensitive).
func ParseVariant(s string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy":
		return LegacyStyle, true
	case "current":
		return CurrentStyle, true
	}
	return LegacyStyle, false
}
