// Package schema describes the persisted document types for documentation:
// a text listing, a JSON description and a Graphviz relationship diagram.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
)

type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	IsReference bool   `json:"is_reference"`
	ReferenceTo string `json:"reference_to,omitempty"`
}

type Model struct {
	Name       string   `json:"-"`
	Collection string   `json:"collection_name"`
	Fields     []Field  `json:"fields"`
	Indexes    []string `json:"indexes"`
}

// references maps id fields whose name does not reveal the target model.
var references = map[string]string{
	"buyer_id":     "User",
	"seller_id":    "User",
	"requester_id": "User",
	"recipient_id": "User",
	"sender_id":    "User",
	"receiver_id":  "User",
	"user_id":      "User",
	"user_ids":     "User",
	"created_by":   "User",
	"invited_by":   "User",
}

// Describe builds the model descriptions in registry order.
func Describe(docs []models.DocumentSpec) []Model {
	names := map[string]bool{}
	for _, s := range docs {
		names[s.Name] = true
	}
	out := make([]Model, 0, len(docs))
	for _, s := range docs {
		m := Model{Name: s.Name, Collection: s.Collection, Fields: fields(s.Type, "", names)}
		for _, idx := range s.Indexes {
			desc := strings.Join(idx.Keys, "+")
			if idx.Unique {
				desc += " (unique)"
			}
			m.Indexes = append(m.Indexes, desc)
		}
		out = append(out, m)
	}
	return out
}

// fields flattens embedded documents into dotted names (message.sender_id).
func fields(t reflect.Type, prefix string, names map[string]bool) []Field {
	var out []Field
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("bson"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() == t.PkgPath() {
			out = append(out, fields(f.Type, prefix+name+".", names)...)
			continue
		}
		fd := Field{Name: prefix + name, Type: typeName(f.Type)}
		if target := referenceTo(name, names); target != "" {
			fd.IsReference, fd.ReferenceTo = true, target
		}
		out = append(out, fd)
	}
	return out
}

func referenceTo(field string, names map[string]bool) string {
	if t, ok := references[field]; ok && names[t] {
		return t
	}
	base, ok := strings.CutSuffix(field, "_id")
	if !ok || base == "" {
		return ""
	}
	parts := strings.Split(base, "_")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	if t := strings.Join(parts, ""); names[t] {
		return t
	}
	return ""
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return "Optional[" + typeName(t.Elem()) + "]"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "bytes"
		}
		return "List[" + typeName(t.Elem()) + "]"
	}
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return "datetime"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		// named string types such as ItemStatus
		return t.Name() + "(" + t.Kind().String() + ")"
	}
	return t.Kind().String()
}

// Text renders the human readable listing.
func Text(ms []Model) string {
	var b strings.Builder
	for _, m := range ms {
		fmt.Fprintf(&b, "Collection: %s (Model: %s)\n", m.Collection, m.Name)
		b.WriteString(strings.Repeat("-", 50) + "\n")
		for _, f := range m.Fields {
			ref := ""
			if f.IsReference {
				ref = " -> References " + f.ReferenceTo
			}
			fmt.Fprintf(&b, "  %s: %s%s\n", f.Name, f.Type, ref)
		}
		if len(m.Indexes) > 0 {
			b.WriteString("\n  Indexes:\n")
			for _, idx := range m.Indexes {
				fmt.Fprintf(&b, "    - %s\n", idx)
			}
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// JSON renders the models keyed by model name.
func JSON(ms []Model) ([]byte, error) {
	byName := make(map[string]Model, len(ms))
	for _, m := range ms {
		byName[m.Name] = m
	}
	return json.MarshalIndent(byName, "", "  ")
}

// Dot renders the references between models as a Graphviz digraph.
func Dot(ms []Model) string {
	var b strings.Builder
	b.WriteString("digraph documents {\n")
	b.WriteString("  label=\"MongoDB Document Relationships\";\n")
	b.WriteString("  node [shape=box, style=filled, fillcolor=lightblue];\n")
	for _, m := range ms {
		fmt.Fprintf(&b, "  %q;\n", m.Name)
	}
	var edges []string
	for _, m := range ms {
		for _, f := range m.Fields {
			if f.IsReference {
				edges = append(edges, fmt.Sprintf("  %q -> %q [label=%q];\n", m.Name, f.ReferenceTo, f.Name))
			}
		}
	}
	sort.Strings(edges)
	for _, e := range edges {
		b.WriteString(e)
	}
	b.WriteString("}\n")
	return b.String()
}
