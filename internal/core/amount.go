// Package core holds the payout domain: amount parsing, the persisted ledger
// state and the milestone arithmetic.
package core

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultKeyword is the trigger word a message must contain to be counted.
const DefaultKeyword = "PAYOUT"

// amountPattern matches an optional leading currency symbol, a digit run that
// may contain spaces or commas as grouping separators, and an optional
// trailing currency symbol.
var amountPattern = regexp.MustCompile(`\$?\s*\d[\d\s,]*\s*\$?`)

// ParseAmount extracts the first positive amount from text.
//
// The text must contain keyword (case-insensitive, plain substring, so a
// keyword embedded in a longer word still matches). Only the first numeric run
// is considered; every non-digit in it is dropped before parsing.
//
// Examples:
//
//	ParseAmount("PAYOUT $1,200", "PAYOUT")  -> 1200, true
//	ParseAmount("payout 1 200$", "PAYOUT")  -> 1200, true
//	ParseAmount("payout of 0$", "PAYOUT")   -> 0, false
//	ParseAmount("bonus 500", "PAYOUT")      -> 0, false
func ParseAmount(text, keyword string) (int64, bool) {
	if text == "" {
		return 0, false
	}
	if keyword == "" {
		keyword = DefaultKeyword
	}
	if !strings.Contains(strings.ToUpper(text), strings.ToUpper(keyword)) {
		return 0, false
	}

	match := amountPattern.FindString(text)
	if match == "" {
		return 0, false
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, match)
	if digits == "" {
		return 0, false
	}

	// Overflow is the Go counterpart of a non-finite number.
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}
