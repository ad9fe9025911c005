// Package console implements ports.Notifier by printing timestamped
// cycle/monitor summaries to an io.Writer, grounded on
// AlejandroRuiz99-polybot's internal/adapters/notify console reporter —
// condensed to this spec's single Notify(title, body) contract instead of
// the teacher's opportunity-table renderer.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/predimarket/tradingcore/internal/ports"
)

// Notifier writes every notification as one line to out.
type Notifier struct {
	out io.Writer
}

var _ ports.Notifier = (*Notifier)(nil)

// New returns a Notifier writing to stdout.
func New() *Notifier {
	return &Notifier{out: os.Stdout}
}

// NewWriter returns a Notifier writing to w, for tests.
func NewWriter(w io.Writer) *Notifier {
	return &Notifier{out: w}
}

// Notify prints "[HH:MM:SS] title: body" to the configured writer.
func (n *Notifier) Notify(_ context.Context, title, body string) error {
	_, err := fmt.Fprintf(n.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), title, body)
	return err
}
