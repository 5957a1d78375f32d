// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"fmt"
	"strings"
)

// BuildURL replaces every {name} placeholder in tpl with params[name].
//
// Values are substituted verbatim; callers escape them first where needed.
// A placeholder with no entry in params yields a MissingParameterError.
func BuildURL(tpl string, params map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(tpl))

	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", tpl)
		}
		end += open

		name := rest[open+1 : end]
		value, ok := params[name]
		if !ok {
			return "", &MissingParameterError{Name: name}
		}

		sb.WriteString(rest[:open])
		sb.WriteString(value)
		rest = rest[end+1:]
	}

	return sb.String(), nil
}
