package config

// Parse reads configuration content as JSONC or TOML.
//
// JSONC is selected when the first non-whitespace character is `{`.
func Parse(content string, base Config) (Config, []Warning, error) {
	switch detectFormat(content) {
	case FormatJSONC:
		return parseJSONC(content, base)
	case FormatTOML:
		return parseTOML(content, base)
	default:
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}
}
