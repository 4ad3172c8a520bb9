package model

import (
	"strings"
	"unicode"
)

// MSPID derives the membership id of an organization: every letter that follows
// a non-letter is upper-cased, the rest lower-cased, separators are dropped and
// "MSP" is appended. "org1.org" becomes "Org1OrgMSP".
func MSPID(orgName string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range orgName {
		switch {
		case r == '.' || r == '-' || r == '_':
			prevLetter = false
			continue
		case unicode.IsLetter(r):
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		default:
			b.WriteRune(r)
			prevLetter = false
		}
	}
	b.WriteString("MSP")
	return b.String()
}
