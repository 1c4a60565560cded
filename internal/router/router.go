// Package router holds the routing tables that classify a transaction type
// token. One table maps processor identities to the tokens they handle, the
// other maps lifecycle verbs to tokens. Both are plain data: adapters for new
// transaction families swap the tables without touching dispatch logic.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProcessorID identifies one upstream client implementation (e.g. "plus_normal").
type ProcessorID string

// Verb is a logical lifecycle operation name, independent of the upstream protocol.
type Verb string

const (
	VerbCommit             Verb = "commit"
	VerbCapture            Verb = "capture"
	VerbNullify            Verb = "nullify"
	VerbRegister           Verb = "register"
	VerbConfirm            Verb = "confirm"
	VerbUnregister         Verb = "unregister"
	VerbCharge             Verb = "charge"
	VerbReverse            Verb = "reverse"
	VerbReverseNullify     Verb = "reverseNullify"
	VerbRetrieveAndConfirm Verb = "retrieveAndConfirm"
	VerbRetrieve           Verb = "retrieve"
	VerbAcknowledge        Verb = "acknowledge"
)

// ProcessorBucket lists the type tokens handled by one processor.
type ProcessorBucket struct {
	Processor ProcessorID
	Types     []string
}

// VerbBucket lists the type tokens committed through one lifecycle verb.
type VerbBucket struct {
	Verb  Verb
	Types []string
}

// ProcessorMap is an ordered list of processor buckets. Order is significant:
// a token present in two buckets resolves to the first one.
type ProcessorMap []ProcessorBucket

// VerbMap is an ordered list of verb buckets, first match wins.
type VerbMap []VerbBucket

// Table answers routing questions in constant time from indexes built once
// per map assignment.
type Table struct {
	processors ProcessorMap
	verbs      VerbMap

	processorByType map[string]ProcessorID
	verbByType      map[string]Verb
}

// NewTable builds a Table over the given maps. The maps are copied.
func NewTable(processors ProcessorMap, verbs VerbMap) *Table {
	t := &Table{}
	t.SetProcessors(processors)
	t.SetVerbs(verbs)
	return t
}

// SetProcessors replaces the processor map and rebuilds its index.
func (t *Table) SetProcessors(processors ProcessorMap) {
	t.processors = cloneProcessors(processors)
	t.processorByType = make(map[string]ProcessorID)
	for _, b := range t.processors {
		for _, typ := range b.Types {
			if _, seen := t.processorByType[typ]; !seen {
				t.processorByType[typ] = b.Processor
			}
		}
	}
}

// SetVerbs replaces the verb map and rebuilds its index.
func (t *Table) SetVerbs(verbs VerbMap) {
	t.verbs = cloneVerbs(verbs)
	t.verbByType = make(map[string]Verb)
	for _, b := range t.verbs {
		for _, typ := range b.Types {
			if _, seen := t.verbByType[typ]; !seen {
				t.verbByType[typ] = b.Verb
			}
		}
	}
}

// Processors returns a copy of the processor map in declared order.
func (t *Table) Processors() ProcessorMap {
	return cloneProcessors(t.processors)
}

// Verbs returns a copy of the verb map in declared order.
func (t *Table) Verbs() VerbMap {
	return cloneVerbs(t.verbs)
}

// ProcessorFor returns the processor that handles typ.
func (t *Table) ProcessorFor(typ string) (ProcessorID, bool) {
	id, ok := t.processorByType[typ]
	return id, ok
}

// VerbFor returns the lifecycle verb that commits typ.
func (t *Table) VerbFor(typ string) (Verb, bool) {
	v, ok := t.verbByType[typ]
	return v, ok
}

// HasVerb reports whether typ is committed through verb.
func (t *Table) HasVerb(typ string, verb Verb) bool {
	v, ok := t.VerbFor(typ)
	return ok && v == verb
}

// Types returns every token known to either map, sorted.
func (t *Table) Types() []string {
	seen := make(map[string]struct{}, len(t.processorByType))
	for typ := range t.processorByType {
		seen[typ] = struct{}{}
	}
	for typ := range t.verbByType {
		seen[typ] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for typ := range seen {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// ErrInvalidTable is wrapped by every error returned from Validate.
var ErrInvalidTable = errors.New("router: invalid routing table")

// Validate reports configuration defects: tokens listed in more than one
// bucket of the same map, and tokens routed by one map but not the other.
func (t *Table) Validate() error {
	var problems []string

	problems = append(problems, duplicates("processor", t.processorBuckets())...)
	problems = append(problems, duplicates("verb", t.verbBuckets())...)

	for _, typ := range t.Types() {
		_, hasProcessor := t.processorByType[typ]
		_, hasVerb := t.verbByType[typ]
		switch {
		case hasProcessor && !hasVerb:
			problems = append(problems, fmt.Sprintf("type %q has a processor but no lifecycle verb", typ))
		case hasVerb && !hasProcessor:
			problems = append(problems, fmt.Sprintf("type %q has a lifecycle verb but no processor", typ))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidTable, strings.Join(problems, "; "))
}

type namedBucket struct {
	name  string
	types []string
}

func (t *Table) processorBuckets() []namedBucket {
	out := make([]namedBucket, 0, len(t.processors))
	for _, b := range t.processors {
		out = append(out, namedBucket{name: string(b.Processor), types: b.Types})
	}
	return out
}

func (t *Table) verbBuckets() []namedBucket {
	out := make([]namedBucket, 0, len(t.verbs))
	for _, b := range t.verbs {
		out = append(out, namedBucket{name: string(b.Verb), types: b.Types})
	}
	return out
}

func duplicates(kind string, buckets []namedBucket) []string {
	var problems []string
	owner := make(map[string]string)
	for _, b := range buckets {
		for _, typ := range b.types {
			if first, ok := owner[typ]; ok {
				problems = append(problems, fmt.Sprintf("type %q is in %s buckets %q and %q", typ, kind, first, b.name))
				continue
			}
			owner[typ] = b.name
		}
	}
	return problems
}

func cloneProcessors(m ProcessorMap) ProcessorMap {
	out := make(ProcessorMap, len(m))
	for i, b := range m {
		out[i] = ProcessorBucket{Processor: b.Processor, Types: append([]string(nil), b.Types...)}
	}
	return out
}

func cloneVerbs(m VerbMap) VerbMap {
	out := make(VerbMap, len(m))
	for i, b := range m {
		out[i] = VerbBucket{Verb: b.Verb, Types: append([]string(nil), b.Types...)}
	}
	return out
}
