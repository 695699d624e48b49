// Package prompt compiles prompt templates against an input schema and renders them
// from validated records.
//
// Supported syntax:
//
//	{{field}} / {{{field}}}   substitute a value
//	{{#if field}}...{{/if}}   include a block only when field is present and non-blank
//	{{media url=field}}       reference an attachment field
package prompt

import (
	"fmt"
	"strings"

	"edugenius/backend/internal/schema"
)

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeVar
	nodeIf
	nodeMedia
)

type node struct {
	kind  nodeKind
	text  string
	field string
	body  []node
}

// Template is a compiled, schema-bound prompt template. It is immutable and safe for
// concurrent use.
type Template struct {
	schema *schema.Schema
	nodes  []node
}

// Fields returns the distinct field names the template references, in first-use order.
func (t *Template) Fields() []string {
	var out []string
	seen := map[string]bool{}
	var walk func([]node)
	walk = func(nodes []node) {
		for _, n := range nodes {
			if n.kind != nodeText && !seen[n.field] {
				seen[n.field] = true
				out = append(out, n.field)
			}
			if n.kind == nodeIf {
				walk(n.body)
			}
		}
	}
	walk(t.nodes)
	return out
}

// Compile parses source and binds it to in. Every placeholder must name a declared
// field; unguarded placeholders must name fields that are always present after
// validation.
func Compile(source string, in *schema.Schema) (*Template, error) {
	if in == nil {
		return nil, fmt.Errorf("prompt: template requires an input schema")
	}
	nodes, err := parse(source)
	if err != nil {
		return nil, err
	}
	if err := bind(nodes, in, map[string]bool{}); err != nil {
		return nil, err
	}
	return &Template{schema: in, nodes: nodes}, nil
}

func bind(nodes []node, in *schema.Schema, guarded map[string]bool) error {
	for _, n := range nodes {
		if n.kind == nodeText {
			continue
		}
		f, ok := in.Field(n.field)
		if !ok {
			return fmt.Errorf("prompt: placeholder %q has no field in schema %q", n.field, in.Name)
		}
		switch n.kind {
		case nodeVar:
			if !f.Required() && f.Default == nil && !guarded[n.field] {
				return fmt.Errorf("prompt: optional field %q must be wrapped in {{#if %s}}", n.field, n.field)
			}
		case nodeMedia:
			if !f.IsAttachment() {
				return fmt.Errorf("prompt: media placeholder %q is not a data-uri field", n.field)
			}
			if !f.Required() && !guarded[n.field] {
				return fmt.Errorf("prompt: optional attachment %q must be wrapped in {{#if %s}}", n.field, n.field)
			}
		case nodeIf:
			inner := make(map[string]bool, len(guarded)+1)
			for k, v := range guarded {
				inner[k] = v
			}
			inner[n.field] = true
			if err := bind(n.body, in, inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func parse(src string) ([]node, error) {
	type frame struct {
		field string
		nodes []node
	}
	stack := []frame{{}}
	appendNode := func(n node) {
		top := &stack[len(stack)-1]
		top.nodes = append(top.nodes, n)
	}

	rest := src
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if rest != "" {
				appendNode(node{kind: nodeText, text: rest})
			}
			break
		}
		if open > 0 {
			appendNode(node{kind: nodeText, text: rest[:open]})
		}
		rest = rest[open:]

		var tag string
		if strings.HasPrefix(rest, "{{{") {
			end := strings.Index(rest, "}}}")
			if end < 0 {
				return nil, fmt.Errorf("prompt: unterminated {{{ at offset %d", len(src)-len(rest))
			}
			tag = strings.TrimSpace(rest[3:end])
			rest = rest[end+3:]
			if !isIdent(tag) {
				return nil, fmt.Errorf("prompt: invalid placeholder {{{%s}}}", tag)
			}
			appendNode(node{kind: nodeVar, field: tag})
			continue
		}

		end := strings.Index(rest, "}}")
		if end < 0 {
			return nil, fmt.Errorf("prompt: unterminated {{ at offset %d", len(src)-len(rest))
		}
		tag = strings.TrimSpace(rest[2:end])
		rest = rest[end+2:]

		switch {
		case strings.HasPrefix(tag, "#if "):
			field := strings.TrimSpace(strings.TrimPrefix(tag, "#if "))
			if !isIdent(field) {
				return nil, fmt.Errorf("prompt: invalid condition {{%s}}", tag)
			}
			stack = append(stack, frame{field: field})
		case tag == "/if":
			if len(stack) == 1 {
				return nil, fmt.Errorf("prompt: {{/if}} without matching {{#if}}")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			appendNode(node{kind: nodeIf, field: top.field, body: top.nodes})
		case strings.HasPrefix(tag, "media "):
			arg := strings.TrimSpace(strings.TrimPrefix(tag, "media "))
			field, ok := strings.CutPrefix(arg, "url=")
			if !ok || !isIdent(field) {
				return nil, fmt.Errorf("prompt: invalid media tag {{%s}}", tag)
			}
			appendNode(node{kind: nodeMedia, field: field})
		case tag == "else":
			return nil, fmt.Errorf("prompt: unsupported tag {{else}}; #if blocks have no else branch")
		case isIdent(tag):
			appendNode(node{kind: nodeVar, field: tag})
		default:
			return nil, fmt.Errorf("prompt: unsupported tag {{%s}}", tag)
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("prompt: {{#if %s}} is never closed", stack[len(stack)-1].field)
	}
	return stack[0].nodes, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
