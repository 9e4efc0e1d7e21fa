/*
intent.go - Callback tag parsing

PURPOSE:
  Selection buttons carry tagged identifiers ("client_7", "del_client_7",
  "delete_receipt_12", ...). This file is the single place those strings are
  parsed; handlers receive a closed Intent value instead of matching string
  prefixes themselves, so "client_" can never accidentally match
  "del_client_".
*/
package conversation

import (
	"errors"
	"strconv"
	"strings"
)

// IntentKind enumerates every button a selection keyboard can produce.
type IntentKind int

const (
	IntentSelectClientForReceipt IntentKind = iota
	IntentSelectClientForView
	IntentSelectClientForDelete
	IntentDeleteReceipt
	IntentSelectClientForPayment
)

// Intent is a parsed callback: which button kind, and the entity id it names.
type Intent struct {
	Kind IntentKind
	ID   int64
}

// ErrBadCallback is returned for malformed or unknown callback data.
var ErrBadCallback = errors.New("malformed callback data")

// tagPrefixes maps wire prefixes to intent kinds. Order matters: longer,
// more specific prefixes are checked first so "delete_receipt_" and
// "del_client_" are never shadowed.
var tagPrefixes = []struct {
	prefix string
	kind   IntentKind
}{
	{"delete_receipt_", IntentDeleteReceipt},
	{"del_client_", IntentSelectClientForDelete},
	{"client_", IntentSelectClientForReceipt},
	{"view_", IntentSelectClientForView},
	{"pay_", IntentSelectClientForPayment},
}

// ParseIntent parses callback data into an Intent.
func ParseIntent(data string) (Intent, error) {
	for _, t := range tagPrefixes {
		if !strings.HasPrefix(data, t.prefix) {
			continue
		}
		id, err := strconv.ParseInt(data[len(t.prefix):], 10, 64)
		if err != nil || id <= 0 {
			return Intent{}, ErrBadCallback
		}
		return Intent{Kind: t.kind, ID: id}, nil
	}
	return Intent{}, ErrBadCallback
}

// Tag renders the wire form of an intent, used when building keyboards.
func (i Intent) Tag() string {
	for _, t := range tagPrefixes {
		if t.kind == i.Kind {
			return t.prefix + strconv.FormatInt(i.ID, 10)
		}
	}
	return ""
}
