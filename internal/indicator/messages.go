package indicator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	openedOne    string
	openedMany   string
	importedOne  string
	importedMany string
	errorText    string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			openedOne:    "Opened %s",
			openedMany:   "Opened %d libraries",
			importedOne:  "imported %d file",
			importedMany: "imported %d files",
			errorText:    "Could not open the requested library",
		}
	}
}

// handoff summarizes one forwarded launch. It returns "" when nothing arrived.
func (m messages) handoff(opened []string, imported int) string {
	var parts []string
	switch len(opened) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf(m.openedOne, filepath.Base(opened[0])))
	default:
		parts = append(parts, fmt.Sprintf(m.openedMany, len(opened)))
	}

	if imported > 0 {
		format := m.importedMany
		if imported == 1 {
			format = m.importedOne
		}
		parts = append(parts, fmt.Sprintf(format, imported))
	}

	if len(parts) == 0 {
		return ""
	}
	text := strings.Join(parts, ", ")
	return strings.ToUpper(text[:1]) + text[1:]
}
