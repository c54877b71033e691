// Package manager tracks the in-flight operations of websocket connections
package manager

import (
	"context"
	"fmt"
	"sync"
)

// Manager manages operations
type Manager struct {
	mx         sync.RWMutex
	operations map[string]*Operation
}

func NewManager() *Manager {
	return &Manager{
		operations: map[string]*Operation{},
	}
}

// Operation is a running query started by a subscribe message
type Operation struct {
	ConnectionID  string
	OperationID   string
	OperationName string
	CancelFunc    context.CancelFunc
}

func (o *Operation) cancel() {
	if o.CancelFunc != nil {
		o.CancelFunc()
	}
}

// Count counts all or specific connection id operations
// can be used for diagnostics
func (m *Manager) Count(connectionIDs ...string) int {
	m.mx.RLock()
	defer m.mx.RUnlock()

	if len(connectionIDs) == 0 {
		return len(m.operations)
	}

	idmap := map[string]struct{}{}
	for _, id := range connectionIDs {
		idmap[id] = struct{}{}
	}

	count := 0
	for _, op := range m.operations {
		if _, ok := idmap[op.ConnectionID]; ok {
			count++
		}
	}

	return count
}

// Has returns true if the operation exists
func (m *Manager) Has(operationID string) bool {
	m.mx.RLock()
	defer m.mx.RUnlock()

	_, ok := m.operations[operationID]
	return ok
}

// Add registers an operation. Operation ids are unique while running.
func (m *Manager) Add(op *Operation) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	if _, ok := m.operations[op.OperationID]; ok {
		return fmt.Errorf("subscriber for %q already exists", op.OperationID)
	}

	m.operations[op.OperationID] = op
	return nil
}

// Remove cancels and removes a single operation
func (m *Manager) Remove(operationID string) *Operation {
	m.mx.Lock()
	defer m.mx.Unlock()

	op, ok := m.operations[operationID]
	if !ok {
		return nil
	}

	op.cancel()
	delete(m.operations, operationID)
	return op
}

// RemoveAll cancels and removes all operations
func (m *Manager) RemoveAll() {
	m.mx.Lock()
	defer m.mx.Unlock()

	for _, op := range m.operations {
		op.cancel()
	}

	m.operations = map[string]*Operation{}
}
