// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxTitleRunes is the longest derived title, ellipsis included.
const MaxTitleRunes = 50

// fillerPrefixes are conversational openers dropped from derived titles.
var fillerPrefixes = []string{
	"can you",
	"could you",
	"help me",
	"i need",
	"please",
	"analyze",
	"review",
	"check",
}

// DeriveTitle builds a conversation title from the first user message.
// It is a pure function of text.
func DeriveTitle(text string) string {
	t := strings.TrimSpace(norm.NFC.String(text))
	t = stripFiller(t)

	runes := []rune(t)
	if len(runes) > MaxTitleRunes {
		t = string(runes[:MaxTitleRunes-3]) + "..."
	}

	if t == "" {
		return SentinelTitle
	}

	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}

// stripFiller removes one leading filler token. Only whole-word prefixes
// count: "checking" keeps its text, "check this" loses "check".
func stripFiller(t string) string {
	for _, p := range fillerPrefixes {
		if len(t) < len(p) || !strings.EqualFold(t[:len(p)], p) {
			continue
		}
		rest := t[len(p):]
		if rest != "" {
			r, _ := utf8.DecodeRuneInString(rest)
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		return strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || r == ',' || r == ':'
		})
	}
	return t
}
