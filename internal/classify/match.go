package classify

import (
	"regexp"
	"strings"
)

// hasWholeWord reports whether token occurs in text bounded by word
// boundaries, ignoring case.
func hasWholeWord(text, token string) bool {
	re, ok := wholeWordRes[token]
	if !ok {
		re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`)
	}
	return re.MatchString(text)
}

// HasSlugToken reports whether token is a complete hyphen-delimited segment
// (or run of segments) of slug, ignoring case.
func HasSlugToken(slug, token string) bool {
	if slug == "" || token == "" {
		return false
	}
	return strings.Contains("-"+strings.ToLower(slug)+"-", "-"+strings.ToLower(token)+"-")
}

// HasAnySlugToken reports whether any of tokens is a segment of slug.
func HasAnySlugToken(slug string, tokens []string) bool {
	for _, t := range tokens {
		if HasSlugToken(slug, t) {
			return true
		}
	}
	return false
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// HasCryptoAsset reports whether text names a crypto asset: a keyword as a
// substring or a ticker as a whole word.
func HasCryptoAsset(text string) bool {
	if text == "" {
		return false
	}
	if containsAny(strings.ToLower(text), cryptoKeywords) {
		return true
	}
	for _, t := range cryptoTickers {
		if hasWholeWord(text, t) {
			return true
		}
	}
	return false
}

// hasTechAsset reports whether text names a tech company. Slugs match
// tickers by hyphen segment, other text by whole word.
func hasTechAsset(text string, isSlug bool) bool {
	if text == "" {
		return false
	}
	if containsAny(strings.ToLower(text), techKeywords) {
		return true
	}
	for _, t := range techTickers {
		if isSlug {
			if HasSlugToken(text, t) {
				return true
			}
		} else if hasWholeWord(text, t) {
			return true
		}
	}
	return false
}

func hasMatchCue(title string) bool {
	for _, re := range matchCueRes {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}
