package differ

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/lex00/cdk-example-go/construct"
)

// StackStatus tells how a stack differs between two assemblies.
type StackStatus string

const (
	StackAdded     StackStatus = "added"
	StackRemoved   StackStatus = "removed"
	StackModified  StackStatus = "modified"
	StackUnchanged StackStatus = "unchanged"
)

// StackDiff is the comparison of one stack across two assemblies.
type StackDiff struct {
	StackName string
	Status    StackStatus
	Result    *Result
}

// CompareAssemblies compares every stack of before and after, matched by
// stack name. Either assembly may be nil. Results are sorted by stack name.
func CompareAssemblies(before, after *construct.Assembly, opts Options) []StackDiff {
	old := stacksByName(before)
	cur := stacksByName(after)

	names := make(map[string]bool, len(old)+len(cur))
	for n := range old {
		names[n] = true
	}
	for n := range cur {
		names[n] = true
	}

	out := make([]StackDiff, 0, len(names))
	for name := range names {
		o, inOld := old[name]
		c, inCur := cur[name]

		d := StackDiff{StackName: name}
		switch {
		case !inOld:
			d.Status = StackAdded
			d.Result = Compare(nil, c.Template, opts)
		case !inCur:
			d.Status = StackRemoved
			d.Result = Compare(o.Template, nil, opts)
		default:
			d.Result = Compare(o.Template, c.Template, opts)
			d.Status = StackUnchanged
			if !d.Result.Empty() {
				d.Status = StackModified
			}
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StackName < out[j].StackName })
	return out
}

// HasChanges reports whether any stack differs.
func HasChanges(diffs []StackDiff) bool {
	for _, d := range diffs {
		if d.Status != StackUnchanged {
			return true
		}
	}
	return false
}

func stacksByName(asm *construct.Assembly) map[string]*construct.StackArtifact {
	out := map[string]*construct.StackArtifact{}
	if asm == nil {
		return out
	}
	for _, s := range asm.AllStacks() {
		out[s.StackName] = s
	}
	return out
}

// Printer renders diffs in the familiar +/-/~ layout.
type Printer struct {
	// NoColor disables ANSI colors regardless of the terminal.
	NoColor bool

	added    *color.Color
	removed  *color.Color
	modified *color.Color
	header   *color.Color
}

func (p *Printer) init() {
	if p.header != nil {
		return
	}
	p.added = color.New(color.FgGreen)
	p.removed = color.New(color.FgRed)
	p.modified = color.New(color.FgYellow)
	p.header = color.New(color.Bold)
	if p.NoColor {
		for _, c := range []*color.Color{p.added, p.removed, p.modified, p.header} {
			c.DisableColor()
		}
	}
}

// PrintStacks writes every changed stack of diffs to w.
func (p *Printer) PrintStacks(w io.Writer, diffs []StackDiff) {
	p.init()
	for _, d := range diffs {
		if d.Status == StackUnchanged {
			continue
		}
		p.header.Fprintf(w, "Stack %s (%s)\n", d.StackName, d.Status)
		p.PrintResult(w, d.Result)
		fmt.Fprintln(w)
	}
	if !HasChanges(diffs) {
		fmt.Fprintln(w, "There were no differences")
	}
}

// PrintResult writes one template comparison to w.
func (p *Printer) PrintResult(w io.Writer, r *Result) {
	p.init()
	for _, e := range r.Diff.Added {
		p.added.Fprintf(w, "[+] %s %s\n", e.Type, e.Resource)
	}
	for _, e := range r.Diff.Removed {
		p.removed.Fprintf(w, "[-] %s %s\n", e.Type, e.Resource)
	}
	for _, e := range r.Diff.Modified {
		p.modified.Fprintf(w, "[~] %s %s\n", e.Type, e.Resource)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "    %s\n", c)
		}
	}
	for _, o := range r.Outputs {
		fmt.Fprintf(w, "[Output] %s\n", o)
	}
}
