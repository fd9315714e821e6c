package sanitizer

import (
	"regexp"
	"strings"

	"github.com/kyokomi/emoji/v2"
)

var shortcode = regexp.MustCompile(`:[0-9a-z]+(?:_[0-9a-z]+)*:`)

// Medal names used by forum software that the emoji table spells differently.
var emojiAliases = map[string]string{
	":first_place_medal:":  ":1st_place_medal:",
	":second_place_medal:": ":2nd_place_medal:",
	":third_place_medal:":  ":3rd_place_medal:",
}

// emojize replaces the known shortcodes in text with their glyphs and
// returns the shortcodes left untouched.
func emojize(text string) (string, []string) {
	codes := emoji.CodeMap()
	var unsupported []string
	out := shortcode.ReplaceAllStringFunc(text, func(code string) string {
		if alias, ok := emojiAliases[code]; ok {
			code = alias
		}
		if glyph, ok := codes[code]; ok {
			return glyph
		}
		// Timestamps such as 10:30:00 match the pattern too.
		if strings.ContainsAny(code, "abcdefghijklmnopqrstuvwxyz") {
			unsupported = append(unsupported, code)
		}
		return code
	})
	return out, unsupported
}
