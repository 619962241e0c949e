package executor

import (
	"strconv"
	"strings"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
)

// FieldValue is the value of one filterable field. Present is false when the
// document carries nothing for the field (an unassigned owner still reads as
// "Unassigned" in Str); numeric fields set IsNum.
type FieldValue struct {
	Str     string
	Num     float64
	IsNum   bool
	Present bool
}

func text(s string) FieldValue {
	return FieldValue{Str: s, Present: s != ""}
}

func number(n float64, present bool) FieldValue {
	return FieldValue{Str: strconv.FormatFloat(n, 'f', -1, 64), Num: n, IsNum: true, Present: present}
}

// Fields lists the filterable field names.
var Fields = []string{"title", "owner", "team", "system", "docType", "criticality", "status", "category", "overallScore"}

// Field resolves a filterable field on doc. Unknown names return ok=false.
func Field(doc *document.Document, name string) (FieldValue, bool) {
	var meta document.Metadata
	if doc.Metadata != nil {
		meta = *doc.Metadata
	}
	switch name {
	case "title":
		return text(doc.Title), true
	case "owner":
		if doc.Owner == document.UnassignedOwner && !meta.HasOwner() {
			return FieldValue{Str: doc.Owner}, true
		}
		return text(doc.Owner), true
	case "team":
		return text(meta.Team), true
	case "system":
		return text(meta.System), true
	case "docType":
		return text(string(meta.DocType)), true
	case "criticality":
		return number(float64(meta.Criticality), meta.Criticality > 0), true
	case "status":
		return text(doc.Risk().Status()), true
	case "category":
		return text(string(doc.Category)), true
	case "overallScore":
		return number(doc.OverallScore, true), true
	}
	return FieldValue{}, false
}

// Match evaluates one filter. Unknown fields, unknown operators and
// malformed values are non-matches, never errors.
func Match(doc *document.Document, f parser.Filter) bool {
	v, ok := Field(doc, f.Field)
	if !ok {
		return false
	}
	switch f.Operator {
	case parser.OpEquals:
		return equal(v, f.Value)
	case parser.OpContains:
		return strings.Contains(strings.ToLower(v.Str), strings.ToLower(parser.FormatValue(f.Value)))
	case parser.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(v.Str), strings.ToLower(parser.FormatValue(f.Value)))
	case parser.OpIn:
		list, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equal(v, item) {
				return true
			}
		}
		return false
	case parser.OpRange:
		bounds, ok := f.Value.(map[string]any)
		if !ok || !v.IsNum || !v.Present {
			return false
		}
		lo, okLo := toNumber(bounds["min"])
		hi, okHi := toNumber(bounds["max"])
		if !okLo || !okHi {
			return false
		}
		return v.Num >= lo && v.Num <= hi
	case parser.OpExists:
		want, ok := f.Value.(bool)
		if !ok {
			return false
		}
		return v.Present == want
	}
	return false
}

func equal(v FieldValue, want any) bool {
	if v.IsNum {
		n, ok := toNumber(want)
		return ok && n == v.Num
	}
	return strings.EqualFold(v.Str, parser.FormatValue(want))
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}
