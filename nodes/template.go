package nodes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Tsinling0525/flowrun/plugin"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Render substitutes placeholders in tpl:
//
//	{{input}}                      the run input
//	{{upstream.<nodeId>}}          output of an upstream node
//	{{upstream.<nodeId>.<path>}}   a field inside that output
//
// Unresolvable placeholders become "". A "{{" without a closing "}}" is an error.
func Render(tpl string, in plugin.Inputs) (string, error) {
	if err := checkBalanced(tpl); err != nil {
		return "", err
	}
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		expr := strings.TrimSpace(placeholder.FindStringSubmatch(m)[1])
		return Stringify(resolve(expr, in))
	}), nil
}

func resolve(expr string, in plugin.Inputs) any {
	if expr == "input" {
		return in.Run
	}
	rest, ok := strings.CutPrefix(expr, "upstream.")
	if !ok {
		return nil
	}
	// Node ids may contain dots, so try the longest id first.
	parts := strings.Split(rest, ".")
	for i := len(parts); i > 0; i-- {
		id := strings.Join(parts[:i], ".")
		out, found := in.Lookup(id)
		if !found {
			continue
		}
		v, ok := Lookup(out, strings.Join(parts[i:], "."))
		if !ok {
			return nil
		}
		return v
	}
	return nil
}

func checkBalanced(tpl string) error {
	rest := tpl
	offset := 0
	for {
		i := strings.Index(rest, "{{")
		if i < 0 {
			return nil
		}
		j := strings.Index(rest[i+2:], "}}")
		if j < 0 {
			return fmt.Errorf("malformed template: unterminated placeholder at offset %d", offset+i)
		}
		step := i + 2 + j + 2
		offset += step
		rest = rest[step:]
	}
}
