// Package route compiles path templates such as /tasks/:id/complete into
// matchers and dispatches requests to the first matching entry of a Table.
package route

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidTemplate = errors.New("route: invalid template")

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Pattern is a compiled path template. It is safe for concurrent use.
type Pattern struct {
	template string
	re       *regexp.Regexp
	names    []string
}

// Compile turns a template into a Pattern. Segments starting with ':' capture
// exactly one non-empty path segment under that name; every other segment
// must match literally.
func Compile(template string) (*Pattern, error) {
	if !strings.HasPrefix(template, "/") {
		return nil, fmt.Errorf("%w: %q must start with /", ErrInvalidTemplate, template)
	}

	var (
		b     strings.Builder
		names []string
		seen  = map[string]struct{}{}
	)
	b.WriteString("^")

	trimmed := strings.TrimSuffix(template, "/")
	if trimmed != "" {
		for _, seg := range strings.Split(trimmed[1:], "/") {
			b.WriteString("/")
			if name, ok := strings.CutPrefix(seg, ":"); ok {
				if !paramName.MatchString(name) {
					return nil, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidTemplate, seg, template)
				}
				if _, dup := seen[name]; dup {
					return nil, fmt.Errorf("%w: duplicate parameter %q in %q", ErrInvalidTemplate, name, template)
				}
				seen[name] = struct{}{}
				names = append(names, name)
				b.WriteString("(?P<" + name + ">[^/]+)")
				continue
			}
			if seg == "" {
				return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidTemplate, template)
			}
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("/?$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return &Pattern{template: template, re: re, names: names}, nil
}

// MustCompile is like Compile but panics on error. Meant for route tables
// built at startup.
func MustCompile(template string) *Pattern {
	p, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string { return p.template }

// Params lists the parameter names in template order.
func (p *Pattern) Params() []string { return append([]string(nil), p.names...) }

// Match tests an escaped request path (url.URL.EscapedPath) and returns the
// percent-decoded parameter values.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	params := make(map[string]string, len(p.names))
	for i, name := range p.re.SubexpNames() {
		if name == "" {
			continue
		}
		v, err := url.PathUnescape(m[i])
		if err != nil {
			return nil, false
		}
		params[name] = v
	}
	return params, true
}
