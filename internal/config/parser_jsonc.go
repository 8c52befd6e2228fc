package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	return finish(payload, base)
}

// finish overlays a decoded payload onto base and validates the result.
func finish(payload fileConfig, base Config) (Config, []Warning, error) {
	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

const (
	scanCode = iota
	scanString
	scanStringEscape
	scanLineComment
	scanBlockComment
)

// normalizeJSONC blanks comments and trailing commas with spaces, so decoder
// offsets still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	state := scanCode

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch state {
		case scanString:
			switch ch {
			case '\\':
				state = scanStringEscape
			case '"':
				state = scanCode
			}
		case scanStringEscape:
			state = scanString
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				state = scanCode
				continue
			}
			out[i] = ' '
		case scanBlockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = scanCode
				continue
			}
			if ch != '\n' && ch != '\r' && ch != '\t' {
				out[i] = ' '
			}
		default:
			switch {
			case ch == '"':
				state = scanString
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				state = scanLineComment
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				state = scanBlockComment
			}
		}
	}

	if state == scanBlockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	blankTrailingCommas(out)
	return string(out), nil
}

func blankTrailingCommas(b []byte) {
	inString, escape := false, false
	for i, ch := range b {
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(b) && isJSONWhitespace(b[j]) {
				j++
			}
			if j < len(b) && (b[j] == '}' || b[j] == ']') {
				b[i] = ' '
			}
		}
	}
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
