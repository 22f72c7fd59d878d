// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator names the predicate a Narrow applies. The set is closed:
// only the constants below are valid on the wire.
type Operator string

const (
	OperatorSender      Operator = "sender"
	OperatorStream      Operator = "stream"
	OperatorSearch      Operator = "search"
	OperatorPMWith      Operator = "pm-with"
	OperatorNear        Operator = "near"
	OperatorID          Operator = "id"
	OperatorStreams     Operator = "streams"
	OperatorIs          Operator = "is"
	OperatorHas         Operator = "has"
	OperatorGroupPMWith Operator = "group-pm-with"
)

const (
	publicStreamsOperand = "public"
	participantSeparator = ","
)

var knownOperators = map[Operator]bool{
	OperatorSender:      true,
	OperatorStream:      true,
	OperatorSearch:      true,
	OperatorPMWith:      true,
	OperatorNear:        true,
	OperatorID:          true,
	OperatorStreams:     true,
	OperatorIs:          true,
	OperatorHas:         true,
	OperatorGroupPMWith: true,
}

// IsWord is a message flag usable with NarrowIs. The only valid values
// are the package-level Is* variables; the zero IsWord is not a word
// and a Narrow built from it fails to encode.
type IsWord struct{ token string }

var (
	IsAlerted   = IsWord{"alerted"}
	IsMentioned = IsWord{"mentioned"}
	IsStarred   = IsWord{"starred"}
	IsUnread    = IsWord{"unread"}
	IsPrivate   = IsWord{"private"}
)

// String returns the wire token.
func (w IsWord) String() string { return w.token }

// HasWord is a content attribute usable with NarrowHas. The only valid
// values are the package-level Has* variables.
type HasWord struct{ token string }

var (
	HasLink       = HasWord{"link"}
	HasImage      = HasWord{"image"}
	HasAttachment = HasWord{"attachment"}
)

// String returns the wire token.
func (w HasWord) String() string { return w.token }

var isVocabulary = map[string]bool{
	IsAlerted.token:   true,
	IsMentioned.token: true,
	IsStarred.token:   true,
	IsUnread.token:    true,
	IsPrivate.token:   true,
}

var hasVocabulary = map[string]bool{
	HasLink.token:       true,
	HasImage.token:      true,
	HasAttachment.token: true,
}

// Narrow is an immutable filter restricting which messages a history
// query or an event queue matches. Build one with the Narrow*
// constructors. Narrow values are comparable with ==.
type Narrow struct {
	operator Operator
	operand  string
	negated  bool
}

// NarrowSender matches messages sent by the given account (email or
// user id as a string).
func NarrowSender(sender string, negated bool) Narrow {
	return Narrow{operator: OperatorSender, operand: sender, negated: negated}
}

// NarrowStream matches messages in the named stream.
func NarrowStream(stream string, negated bool) Narrow {
	return Narrow{operator: OperatorStream, operand: stream, negated: negated}
}

// NarrowSearch matches messages containing keyword.
func NarrowSearch(keyword string, negated bool) Narrow {
	return Narrow{operator: OperatorSearch, operand: keyword, negated: negated}
}

// NarrowPMWith matches direct messages exchanged with exactly the given
// participants.
func NarrowPMWith(participants []string, negated bool) Narrow {
	return Narrow{operator: OperatorPMWith, operand: strings.Join(participants, participantSeparator), negated: negated}
}

// NarrowNear centers a history window on messageID. It is never negated.
func NarrowNear(messageID int64) Narrow {
	return Narrow{operator: OperatorNear, operand: strconv.FormatInt(messageID, 10)}
}

// NarrowID matches the single message with messageID.
func NarrowID(messageID int64, negated bool) Narrow {
	return Narrow{operator: OperatorID, operand: strconv.FormatInt(messageID, 10), negated: negated}
}

// NarrowPublicStreams matches messages in any public stream.
func NarrowPublicStreams(negated bool) Narrow {
	return Narrow{operator: OperatorStreams, operand: publicStreamsOperand, negated: negated}
}

// NarrowIs matches messages carrying the given flag.
func NarrowIs(word IsWord, negated bool) Narrow {
	return Narrow{operator: OperatorIs, operand: word.token, negated: negated}
}

// NarrowHas matches messages whose content has the given attribute.
func NarrowHas(word HasWord, negated bool) Narrow {
	return Narrow{operator: OperatorHas, operand: word.token, negated: negated}
}

// NarrowGroupPMWith matches group direct messages that include all of
// the given participants.
func NarrowGroupPMWith(participants []string, negated bool) Narrow {
	return Narrow{operator: OperatorGroupPMWith, operand: strings.Join(participants, participantSeparator), negated: negated}
}

// Operator returns the narrow's operator.
func (n Narrow) Operator() Operator { return n.operator }

// Operand returns the narrow's operand in wire form. Participant lists
// are comma-joined.
func (n Narrow) Operand() string { return n.operand }

// Negated reports whether the narrow excludes rather than includes.
func (n Narrow) Negated() bool { return n.negated }

// String renders the narrow in search-bar syntax, e.g. "stream:general"
// or "-is:starred". ParseNarrow accepts the same syntax.
func (n Narrow) String() string {
	prefix := ""
	if n.negated {
		prefix = "-"
	}
	return prefix + string(n.operator) + ":" + n.operand
}

// validate checks the operator/operand pairing. Only values that did
// not come from a constructor (zero words, decoded input) can fail.
func (n Narrow) validate() error {
	if !knownOperators[n.operator] {
		return fmt.Errorf("zulip: unknown narrow operator %q", n.operator)
	}
	switch n.operator {
	case OperatorIs:
		if !isVocabulary[n.operand] {
			return fmt.Errorf("zulip: %q is not a valid is: operand", n.operand)
		}
	case OperatorHas:
		if !hasVocabulary[n.operand] {
			return fmt.Errorf("zulip: %q is not a valid has: operand", n.operand)
		}
	case OperatorStreams:
		if n.operand != publicStreamsOperand {
			return fmt.Errorf("zulip: streams: operand must be %q, got %q", publicStreamsOperand, n.operand)
		}
	case OperatorNear, OperatorID:
		if _, err := strconv.ParseInt(n.operand, 10, 64); err != nil {
			return fmt.Errorf("zulip: %s: operand %q is not a message id", n.operator, n.operand)
		}
	}
	return nil
}

// narrowWire is the JSON shape of one narrow element.
type narrowWire struct {
	Operator Operator `json:"operator"`
	Operand  string   `json:"operand"`
	Negated  bool     `json:"negated"`
}

// MarshalJSON encodes the narrow as {"operator","operand","negated"}.
func (n Narrow) MarshalJSON() ([]byte, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(narrowWire{Operator: n.operator, Operand: n.operand, Negated: n.negated})
}

// UnmarshalJSON decodes the shape MarshalJSON produces, rejecting
// operators and operands outside the closed vocabulary.
func (n *Narrow) UnmarshalJSON(data []byte) error {
	var wire narrowWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded := Narrow{operator: wire.Operator, operand: wire.Operand, negated: wire.Negated}
	if err := decoded.validate(); err != nil {
		return err
	}
	*n = decoded
	return nil
}

// EncodeNarrows returns the JSON array sent as the "narrow" request
// parameter. A nil or empty slice encodes as "[]".
func EncodeNarrows(narrows []Narrow) (string, error) {
	if len(narrows) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(narrows)
	if err != nil {
		return "", fmt.Errorf("zulip: encoding narrow: %w", err)
	}
	return string(encoded), nil
}

// ParseNarrow parses search-bar syntax: "operator:operand", optionally
// prefixed with "-" to negate. The operand of pm-with and group-pm-with
// is a comma-separated participant list. Everything after the first
// colon is the operand, so stream names may contain colons.
func ParseNarrow(text string) (Narrow, error) {
	negated := false
	if strings.HasPrefix(text, "-") {
		negated = true
		text = text[1:]
	}
	operator, operand, found := strings.Cut(text, ":")
	if !found || operator == "" {
		return Narrow{}, fmt.Errorf("zulip: narrow %q must have the form operator:operand", text)
	}
	parsed := Narrow{operator: Operator(operator), operand: operand, negated: negated}
	if err := parsed.validate(); err != nil {
		return Narrow{}, err
	}
	if parsed.operator == OperatorNear && negated {
		return Narrow{}, fmt.Errorf("zulip: near: cannot be negated")
	}
	return parsed, nil
}
