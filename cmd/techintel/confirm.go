package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/techintel/techintel/internal/fault"
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// lineConfirmer asks on out and reads one answer line from in. When stdin is
// not a terminal nobody can answer, so it declines without reading.
type lineConfirmer struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newLineConfirmer(in io.Reader, out io.Writer, interactive bool) *lineConfirmer {
	return &lineConfirmer{in: bufio.NewReader(in), out: out, interactive: interactive}
}

func (c *lineConfirmer) Confirm(ctx context.Context, prompt string) error {
	if !c.interactive {
		fmt.Fprintln(c.out, "not a terminal; pass --yes to confirm")
		return fault.Aborted("confirm")
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)

	answer := make(chan string, 1)
	go func() {
		line, _ := c.in.ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return fault.Aborted("confirm")
	case a := <-answer:
		if a == "y" || a == "yes" {
			return nil
		}
		return fault.Aborted("confirm")
	}
}
