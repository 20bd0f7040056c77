package broker

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Macro names accepted in delivery-option templates.
const (
	macroID        = "id"
	macroCID       = "c_id"
	macroTimestamp = "timestamp"
	macroCount     = "count"
)

// counterTable holds the per-message-id counters behind the ${count} macro.
//
// Counters are scoped to one broker instance: created empty at Initialize,
// discarded at Shutdown. The sequence for a message id reflects publish-call
// order, not delivery-completion order.
type counterTable struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newCounterTable() *counterTable {
	return &counterTable{counts: make(map[string]uint64)}
}

// next returns the current counter value for messageID and increments it.
// The first call for a message id returns 0.
func (t *counterTable) next(messageID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.counts[messageID]
	t.counts[messageID] = n + 1
	return n
}

// expandTemplate resolves ${id}, ${c_id}, ${timestamp} and ${count} macros
// in tmpl against the given payload and message id.
//
// The ${count} counter is taken once per expansion: a template referencing
// ${count} twice resolves both occurrences to the same value, and templates
// without ${count} leave the counter untouched.
//
// Errors:
//   - ErrUnknownMacro for an unrecognised ${...} reference
//   - ErrMissingField for ${c_id} when the payload has no correlation id
//   - ErrEmptyTemplate when the resolved string is empty
func expandTemplate(tmpl, messageID string, p *Payload, counters *counterTable) (string, error) {
	var out strings.Builder
	var count string // resolved lazily, at most once

	rest := tmpl
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start:], "}")
		if end < 0 {
			// Unterminated macro reference.
			return "", fmt.Errorf("%w: unterminated reference in %q", ErrUnknownMacro, tmpl)
		}

		name := rest[start+2 : start+end]
		rest = rest[start+end+1:]

		switch name {
		case macroID:
			out.WriteString(p.ID())
		case macroCID:
			if p.CorrelationID() == "" {
				return "", fmt.Errorf("%w: ${c_id} referenced but payload has no correlation id", ErrMissingField)
			}
			out.WriteString(p.CorrelationID())
		case macroTimestamp:
			out.WriteString(strconv.FormatInt(p.CreatedAt().UnixNano(), 10))
		case macroCount:
			if count == "" {
				count = strconv.FormatUint(counters.next(messageID), 10)
			}
			out.WriteString(count)
		default:
			return "", fmt.Errorf("%w: ${%s}", ErrUnknownMacro, name)
		}
	}

	resolved := out.String()
	if resolved == "" {
		return "", fmt.Errorf("%w: template %q", ErrEmptyTemplate, tmpl)
	}
	return resolved, nil
}
