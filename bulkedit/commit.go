/*
commit.go - Batch assembly and dispatch

PURPOSE:
  Turns a ledger snapshot into an ordered list of atomic update commands,
  then hands them to the persistence collaborator and reports the
  outcome of every command.

ASSEMBLY (per invoice, in session order):
  1. Collect the invoice's pending changes in first-write order.
  2. Validate every directly edited change.
  3. If a FieldItems change is present, recalculate and append
     subTotal, taxRate, discountRate, taxAmount, discountAmount, total.
     Direct edits of those six fields are superseded by the derived
     values and dropped from the command list (they are still validated).
  4. The raw item payload never becomes a command.

DISPATCH:
  Invoices are dispatched concurrently (bounded), commands of one invoice
  sequentially in assembly order. The first failure of an invoice stops
  that invoice; its remaining commands are reported as ErrSkipped.
  There is no ordering across invoices and no atomicity across the batch:
  every outcome is returned and nothing is silently dropped.
*/
package bulkedit

import (
	"context"
	"log/slog"

	"github.com/warp/invoice-engine/invoice"
	"golang.org/x/sync/errgroup"
)

// DefaultDispatchConcurrency bounds the number of invoices in flight.
const DefaultDispatchConcurrency = 4

// =============================================================================
// ASSEMBLY
// =============================================================================

// InvoiceBatch is the assembled command list of one invoice.
type InvoiceBatch struct {
	InvoiceID    invoice.ID
	Commands     []invoice.UpdateCommand
	Recalculated bool
	Totals       *Totals
}

// Batch is the assembled commit, in session invoice order.
type Batch struct {
	Invoices []InvoiceBatch
}

// Commands flattens the batch into one ordered command list.
func (b Batch) Commands() []invoice.UpdateCommand {
	var out []invoice.UpdateCommand
	for _, ib := range b.Invoices {
		out = append(out, ib.Commands...)
	}
	return out
}

// Assemble builds the batch for invoices from snap and validates it.
// Invoices without pending changes are omitted. A non-empty violation
// list means the batch must not be dispatched.
func Assemble(invoices []invoice.Invoice, snap *Snapshot) (Batch, []Violation) {
	var (
		batch      Batch
		violations []Violation
	)

	for _, inv := range invoices {
		changes := snap.ChangesFor(inv.ID)
		if len(changes) == 0 {
			continue
		}
		violations = append(violations, ValidateChanges(changes)...)

		var items *invoice.PendingChange
		for i := range changes {
			if changes[i].IsItems() {
				items = &changes[i]
			}
		}

		ib := InvoiceBatch{InvoiceID: inv.ID}
		for _, c := range changes {
			if c.IsItems() || (items != nil && isDerived(c.Field)) {
				continue
			}
			ib.Commands = append(ib.Commands, toCommand(c))
		}

		if items != nil {
			totals := RecalculateInvoice(inv, items.Items, snap)
			ib.Recalculated = true
			ib.Totals = &totals
			for _, c := range totals.Changes(inv.ID) {
				ib.Commands = append(ib.Commands, toCommand(c))
			}
		}

		batch.Invoices = append(batch.Invoices, ib)
	}

	return batch, violations
}

func toCommand(c invoice.PendingChange) invoice.UpdateCommand {
	return invoice.UpdateCommand{InvoiceID: c.InvoiceID, Field: c.Field, Value: c.Value}
}

// =============================================================================
// DISPATCH
// =============================================================================

// CommandFailure is a command that did not apply.
type CommandFailure struct {
	Command invoice.UpdateCommand
	Err     error
}

// InvoiceOutcome reports what happened to one invoice's commands.
type InvoiceOutcome struct {
	InvoiceID invoice.ID
	Applied   []invoice.UpdateCommand
	Failed    []CommandFailure
}

// OK reports whether every command of the invoice applied.
func (o InvoiceOutcome) OK() bool { return len(o.Failed) == 0 }

// Dispatcher sends assembled batches to an Updater.
type Dispatcher struct {
	Updater     invoice.Updater
	Concurrency int
	Logger      *slog.Logger
}

// Dispatch applies every command of batch and returns one outcome per
// invoice, in batch order.
func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch) []InvoiceOutcome {
	outcomes := make([]InvoiceOutcome, len(batch.Invoices))

	limit := d.Concurrency
	if limit <= 0 {
		limit = DefaultDispatchConcurrency
	}

	// Goroutines never return an error: one invoice failing must not
	// cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, ib := range batch.Invoices {
		g.Go(func() error {
			outcomes[i] = d.dispatchInvoice(ctx, ib)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (d *Dispatcher) dispatchInvoice(ctx context.Context, ib InvoiceBatch) InvoiceOutcome {
	out := InvoiceOutcome{InvoiceID: ib.InvoiceID}

	for i, cmd := range ib.Commands {
		err := ctx.Err()
		if err == nil {
			err = d.Updater.UpdateInvoice(ctx, cmd.InvoiceID, map[invoice.Field]string{cmd.Field: cmd.Value})
		}
		if err == nil {
			out.Applied = append(out.Applied, cmd)
			continue
		}

		d.logger().Warn("invoice update failed",
			slog.String("invoice_id", string(cmd.InvoiceID)),
			slog.String("field", string(cmd.Field)),
			slog.String("error", err.Error()),
		)
		out.Failed = append(out.Failed, CommandFailure{Command: cmd, Err: err})
		for _, rest := range ib.Commands[i+1:] {
			out.Failed = append(out.Failed, CommandFailure{Command: rest, Err: ErrSkipped})
		}
		break
	}
	return out
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
