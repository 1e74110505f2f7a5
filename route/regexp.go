package route

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// defaultPattern captures one path segment.
const defaultPattern = "[^/]+"

// routePattern stores a compiled pattern and metadata about the template.
type routePattern struct {
	// template is the template as declared.
	template string
	// literal is set when the template has no placeholders; matching is a
	// plain prefix test.
	literal bool
	// regexp is the compiled, start-anchored regular expression.
	regexp *regexp.Regexp
	// reverse is the template with %s placeholders for Sprintf.
	reverse string
	// varsN are the placeholder names in declaration order.
	varsN []string
	// varsI are the submatch indices of each placeholder in regexp.
	varsI []int
	// varsR are the compiled regexps for validating each value when
	// building paths.
	varsR []*regexp.Regexp
}

// newRoutePattern parses a pattern template and returns a compiled
// routePattern.
//
// Templates are split on "/". A segment starting with ":" is a placeholder:
// ":name" captures any run of non-"/" characters and ":name(expr)" captures
// expr verbatim. Every other segment is matched literally.
func newRoutePattern(tpl string) (*routePattern, error) {
	if !strings.Contains(tpl, "/:") && !strings.HasPrefix(tpl, ":") {
		return &routePattern{
			template: tpl,
			literal:  true,
			reverse:  strings.ReplaceAll(tpl, "%", "%%"),
		}, nil
	}

	var (
		pattern bytes.Buffer
		reverse bytes.Buffer
		varsN   []string
		exprs   []string
	)

	pattern.WriteByte('^')

	for i, seg := range strings.Split(tpl, "/") {
		if i > 0 {
			pattern.WriteByte('/')
			reverse.WriteByte('/')
		}

		if !strings.HasPrefix(seg, ":") {
			pattern.WriteString(regexp.QuoteMeta(seg))
			reverse.WriteString(strings.ReplaceAll(seg, "%", "%%"))
			continue
		}

		name, expr, err := parsePlaceholder(seg, tpl)
		if err != nil {
			return nil, err
		}

		// Synthetic group names keep placeholder indices stable even when
		// expr carries capturing groups of its own.
		fmt.Fprintf(&pattern, "(?P<v%d>%s)", len(varsN), expr)
		reverse.WriteString("%s")

		varsN = append(varsN, name)
		exprs = append(exprs, expr)
	}

	if err := checkDuplicateVars(varsN); err != nil {
		return nil, err
	}

	reg, err := compileRegexp(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("route: invalid pattern %q: %w", tpl, err)
	}

	varsI := make([]int, len(varsN))
	varsR := make([]*regexp.Regexp, len(varsN))
	for i, name := range varsN {
		varsI[i] = reg.SubexpIndex(fmt.Sprintf("v%d", i))

		varsR[i], err = compileRegexp(fmt.Sprintf("^(?:%s)$", exprs[i]))
		if err != nil {
			return nil, fmt.Errorf("route: invalid pattern %q in placeholder %q: %w", exprs[i], name, err)
		}
	}

	return &routePattern{
		template: tpl,
		regexp:   reg,
		reverse:  reverse.String(),
		varsN:    varsN,
		varsI:    varsI,
		varsR:    varsR,
	}, nil
}

// parsePlaceholder splits ":name" or ":name(expr)" into its parts.
func parsePlaceholder(seg, tpl string) (name, expr string, err error) {
	body := seg[1:]
	expr = defaultPattern

	if idx := strings.IndexByte(body, '('); idx != -1 {
		if !strings.HasSuffix(body, ")") {
			return "", "", fmt.Errorf("route: unterminated placeholder %q in %q", seg, tpl)
		}
		name, expr = body[:idx], body[idx+1:len(body)-1]
		if expr == "" {
			return "", "", fmt.Errorf("route: empty expression in %q from %q", seg, tpl)
		}
	} else {
		name = body
	}

	if name == "" {
		return "", "", fmt.Errorf("route: missing name in %q from %q", seg, tpl)
	}

	return name, expr, nil
}

// match returns the consumed prefix of input and the extracted params.
func (p *routePattern) match(input string) (Resolution, bool) {
	if p.literal {
		if p.template == "" || !strings.HasPrefix(input, p.template) {
			return Resolution{}, false
		}
		return Resolution{Segment: p.template, Params: Params{}}, true
	}

	loc := p.regexp.FindStringSubmatchIndex(input)
	if loc == nil || loc[1] == 0 {
		return Resolution{}, false
	}

	params := make(Params, len(p.varsN))
	for i, name := range p.varsN {
		idx := p.varsI[i]
		if start, end := loc[2*idx], loc[2*idx+1]; start >= 0 {
			params[name] = input[start:end]
		}
	}

	return Resolution{
		Segment: input[:loc[1]],
		Params:  params,
		Keys:    append([]string(nil), p.varsN...),
	}, true
}

// build fills the reverse template with the given values.
func (p *routePattern) build(values Params) (string, error) {
	args := make([]any, len(p.varsN))
	for i, name := range p.varsN {
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("route: missing route variable %q", name)
		}
		if !p.varsR[i].MatchString(v) {
			return "", fmt.Errorf("route: variable %q doesn't match, expected %q", name, p.varsR[i].String())
		}
		args[i] = v
	}
	return fmt.Sprintf(p.reverse, args...), nil
}

// checkDuplicateVars returns an error if any variable name is repeated.
func checkDuplicateVars(vars []string) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v] {
			return fmt.Errorf("route: duplicated route variable %q", v)
		}
		seen[v] = true
	}
	return nil
}
