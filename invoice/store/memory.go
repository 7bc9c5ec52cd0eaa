// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/invoice-engine/invoice"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	invoices map[invoice.ID]invoice.Invoice
	order    []invoice.ID
	applied  []invoice.UpdateCommand
}

func NewMemory(invoices ...invoice.Invoice) *Memory {
	m := &Memory{invoices: make(map[invoice.ID]invoice.Invoice)}
	for _, inv := range invoices {
		m.invoices[inv.ID] = inv.Clone()
		m.order = append(m.order, inv.ID)
	}
	return m
}

func (m *Memory) ListInvoices(_ context.Context) ([]invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]invoice.Invoice, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.invoices[id].Clone())
	}
	return result, nil
}

func (m *Memory) GetInvoice(_ context.Context, id invoice.ID) (*invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, invoice.NotFoundError(id)
	}
	c := inv.Clone()
	return &c, nil
}

func (m *Memory) CreateInvoice(_ context.Context, inv invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[inv.ID]; ok {
		return invoice.ErrInvoiceExists
	}
	m.invoices[inv.ID] = inv.Clone()
	m.order = append(m.order, inv.ID)
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id invoice.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[id]; !ok {
		return invoice.NotFoundError(id)
	}
	delete(m.invoices, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateInvoice applies a partial field set. All fields or none.
func (m *Memory) UpdateInvoice(_ context.Context, id invoice.ID, fields map[invoice.Field]string) error {
	if err := invoice.ValidateUpdate(id, fields); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return invoice.NotFoundError(id)
	}
	for f, v := range fields {
		inv.Set(f, v)
		m.applied = append(m.applied, invoice.UpdateCommand{InvoiceID: id, Field: f, Value: v})
	}
	m.invoices[id] = inv
	return nil
}

// Applied returns every field update applied so far, in application order.
func (m *Memory) Applied() []invoice.UpdateCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]invoice.UpdateCommand, len(m.applied))
	copy(result, m.applied)
	return result
}

// Reset drops every invoice and the applied log.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invoices = make(map[invoice.ID]invoice.Invoice)
	m.order = nil
	m.applied = nil
	return nil
}
