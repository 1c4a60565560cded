// Package monitor validates transaction attributes against per-type JSON
// schemas before they reach an upstream client.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/yourorg/transbank-api/internal/transaction"
)

// ErrContract is matched by every ContractError.
var ErrContract = errors.New("transaction attributes violate contract")

// ContractError lists the schema violations of a transaction type.
type ContractError struct {
	Type       string
	Violations []string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrContract, e.Type, strings.Join(e.Violations, "; "))
}

func (e *ContractError) Is(target error) bool {
	return target == ErrContract
}

// ContractMonitor holds compiled schemas keyed by transaction type.
// Types without a schema are accepted as they are.
type ContractMonitor struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

// NewContractMonitor creates a monitor with no schemas.
func NewContractMonitor() *ContractMonitor {
	return &ContractMonitor{schemas: make(map[string]*gojsonschema.Schema)}
}

// Register compiles schema and binds it to each of types.
func (cm *ContractMonitor) Register(schema string, types ...string) error {
	return cm.register(gojsonschema.NewStringLoader(schema), "inline schema", types)
}

// RegisterFile compiles the schema at path and binds it to each of types.
// The path should be absolute or relative to the working directory.
func (cm *ContractMonitor) RegisterFile(path string, types ...string) error {
	return cm.register(gojsonschema.NewReferenceLoader("file://"+path), path, types)
}

func (cm *ContractMonitor) register(loader gojsonschema.JSONLoader, source string, types []string) error {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return fmt.Errorf("error loading or compiling schema %s: %w", source, err)
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, typ := range types {
		cm.schemas[typ] = schema
	}
	return nil
}

// Has reports whether typ has a schema.
func (cm *ContractMonitor) Has(typ string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.schemas[typ]
	return ok
}

// Types returns the types with a schema, sorted.
func (cm *ContractMonitor) Types() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]string, 0, len(cm.schemas))
	for typ := range cm.schemas {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Validate checks attributes against the schema of typ. Violations are
// reported as a *ContractError.
func (cm *ContractMonitor) Validate(typ string, attributes map[string]any) error {
	cm.mu.RLock()
	schema, ok := cm.schemas[typ]
	cm.mu.RUnlock()
	if !ok {
		return nil
	}

	if attributes == nil {
		attributes = map[string]any{}
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(attributes))
	if err != nil {
		return fmt.Errorf("error during validation of %q: %w", typ, err)
	}
	if res.Valid() {
		return nil
	}

	violations := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		violations = append(violations, desc.String())
	}
	sort.Strings(violations)
	return &ContractError{Type: typ, Violations: violations}
}

// Hooks returns transaction hooks that validate attributes right before commit.
func (cm *ContractMonitor) Hooks() transaction.Hooks {
	return transaction.HookFuncs{
		Pre: func(_ context.Context, tx *transaction.Transaction) error {
			return cm.Validate(tx.Type(), tx.Attributes())
		},
	}
}
