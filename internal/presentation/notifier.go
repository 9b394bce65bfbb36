package presentation

import (
	"io"
	"os"

	"github.com/pterm/pterm"

	"vsixgrab/internal/dispatcher"
	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
)

// Notifier prints dispatch outcomes as terminal notices.
type Notifier struct {
	w io.Writer
}

func NewNotifier(w io.Writer) *Notifier {
	if w == nil {
		w = os.Stdout
	}
	return &Notifier{w: w}
}

func (n *Notifier) Notify(o dispatcher.Outcome) {
	switch {
	case o.OK():
		pterm.Success.WithWriter(n.w).Println(o.Message())
	case o.Kind == dispatcher.MissingData:
		pterm.Warning.WithWriter(n.w).Println(o.Message())
	default:
		pterm.Error.WithWriter(n.w).Println(o.Message())
	}
}

func (n *Notifier) Info(format string, args ...any) {
	pterm.Info.WithWriter(n.w).Printfln(format, args...)
}

// Descriptor prints the fields and both download URLs.
func (n *Notifier) Descriptor(d models.Descriptor) {
	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Identifier", d.Identifier})
	rows = append(rows, []string{"Publisher", d.Publisher})
	rows = append(rows, []string{"Name", d.ExtensionName})
	rows = append(rows, []string{"Version", d.Version})
	if d.IsComplete() {
		rows = append(rows, []string{"VSIX", marketplace.ResolveDescriptor(d, models.KindVSIX)})
		rows = append(rows, []string{"Visual Studio package", marketplace.ResolveDescriptor(d, models.KindVSIXPackage)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(n.w).WithData(rows).Render()
}
