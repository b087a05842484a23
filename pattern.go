package gatekit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Captures holds the values extracted from a matched path, keyed by
// placeholder name. Values are typed per the placeholder kind: int captures
// are int, every other kind is string.
type Captures map[string]any

// ProtectFunc decides, from the captured values, whether a matched path
// actually requires a token. It must be pure: no side effects, no I/O.
type ProtectFunc func(Captures) bool

// converterPattern maps placeholder kinds to their match expressions. These
// mirror the common web-framework converters: int, str, slug, uuid, path.
var converterPattern = map[string]string{
	"int":  `[0-9]+`,
	"str":  `[^/]+`,
	"slug": `[-a-zA-Z0-9_]+`,
	"uuid": `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`,
	"path": `.+`,
}

// placeholderRe matches "<int:year>" and the shorthand "<year>" (str).
var placeholderRe = regexp.MustCompile(`<(?:([a-z]+):)?([a-zA-Z_][a-zA-Z0-9_]*)>`)

type capture struct {
	name string
	kind string
}

// Pattern is a compiled path template. Templates are written without a
// leading slash, literal segments mixed with typed placeholders:
//
//	"blog/<int:year>/<str:slug>/"
//	"reports/<uuid:id>"
//	"files/<path:rest>"
//
// A Pattern is immutable after compilation and safe for concurrent use.
type Pattern struct {
	template     string
	re           *regexp.Regexp
	captures     []capture
	staticPrefix string
}

// ParsePattern compiles a path template. It returns ErrInvalidPattern when a
// placeholder is malformed, uses an unknown kind, repeats a name, or when a
// "path" placeholder is not the final element of the template.
func ParsePattern(template string) (*Pattern, error) {
	if strings.HasPrefix(template, "/") {
		return nil, NewError(ErrInvalidPattern, "template must not start with a slash").WithPath(template)
	}
	if strings.ContainsAny(template, "?#") {
		return nil, NewError(ErrInvalidPattern, "template must not contain query or fragment characters").WithPath(template)
	}

	locs := placeholderRe.FindAllStringSubmatchIndex(template, -1)

	var (
		expr     strings.Builder
		captures []capture
		seen     = map[string]bool{}
		last     = 0
	)
	expr.WriteString(`^`)
	for _, loc := range locs {
		literal := template[last:loc[0]]
		if strings.ContainsAny(literal, "<>") {
			return nil, NewError(ErrInvalidPattern, "malformed placeholder").WithPath(template)
		}
		expr.WriteString(regexp.QuoteMeta(literal))

		kind := "str"
		if loc[2] != -1 {
			kind = template[loc[2]:loc[3]]
		}
		name := template[loc[4]:loc[5]]

		sub, ok := converterPattern[kind]
		if !ok {
			return nil, NewError(ErrInvalidPattern, fmt.Sprintf("unknown converter %q", kind)).WithPath(template)
		}
		if kind == "path" && loc[1] != len(template) {
			return nil, NewError(ErrInvalidPattern, "path converter must be the final element").WithPath(template)
		}
		if seen[name] {
			return nil, NewError(ErrInvalidPattern, fmt.Sprintf("duplicate capture name %q", name)).WithPath(template)
		}
		seen[name] = true

		expr.WriteString("(" + sub + ")")
		captures = append(captures, capture{name: name, kind: kind})
		last = loc[1]
	}
	tail := template[last:]
	if strings.ContainsAny(tail, "<>") {
		return nil, NewError(ErrInvalidPattern, "malformed placeholder").WithPath(template)
	}
	expr.WriteString(regexp.QuoteMeta(tail))

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, NewError(ErrInvalidPattern, err.Error()).WithPath(template)
	}

	staticPrefix := template
	if len(locs) > 0 {
		staticPrefix = template[:locs[0][0]]
	}

	return &Pattern{
		template:     template,
		re:           re,
		captures:     captures,
		staticPrefix: staticPrefix,
	}, nil
}

// MustParsePattern is like ParsePattern but panics on error. Intended for
// startup-time registration with literal templates.
func MustParsePattern(template string) *Pattern {
	p, err := ParsePattern(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Template returns the original template string. It is the Pattern's
// identity.
func (p *Pattern) Template() string {
	return p.template
}

// String returns the template string.
func (p *Pattern) String() string {
	return p.template
}

// StaticPrefix returns the literal leading portion of the template up to,
// but excluding, the first placeholder. When the template has no placeholder
// the static prefix is the whole template. It is the basis for cookie
// scoping.
func (p *Pattern) StaticPrefix() string {
	return p.staticPrefix
}

// Match attempts an exact match of a request path (without its leading
// slash) against the template. A capture that fails to convert to its
// declared type is a non-match, not an error.
func (p *Pattern) Match(path string) (Captures, bool) {
	captures, rest, ok := p.consume(path)
	if !ok || rest != "" {
		return nil, false
	}
	return captures, true
}

// MatchPrefix matches the template as a prefix of the request path, for
// subtree protection. When the template does not end in a slash, the
// remainder must be empty or begin at a segment boundary, so "doc" does not
// protect "documents".
func (p *Pattern) MatchPrefix(path string) (Captures, bool) {
	captures, rest, ok := p.consume(path)
	if !ok {
		return nil, false
	}
	if rest != "" && !strings.HasSuffix(p.template, "/") && !strings.HasPrefix(rest, "/") {
		return nil, false
	}
	return captures, true
}

func (p *Pattern) consume(path string) (Captures, string, bool) {
	loc := p.re.FindStringSubmatchIndex(path)
	if loc == nil {
		return nil, "", false
	}

	captures := make(Captures, len(p.captures))
	for i, c := range p.captures {
		raw := path[loc[2+2*i]:loc[3+2*i]]
		switch c.kind {
		case "int":
			n, err := strconv.Atoi(raw)
			if err != nil {
				// out of range for int; declared type cannot hold it
				return nil, "", false
			}
			captures[c.name] = n
		default:
			captures[c.name] = raw
		}
	}
	return captures, path[loc[1]:], true
}
