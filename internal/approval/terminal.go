package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/codefionn/werkbank/internal/logger"
)

var (
	gateTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	gatePathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	gatePreviewStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				MarginLeft(2)

	gatePromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))
)

const gateWrapWidth = 80

// TerminalGate asks the operator on the controlling terminal. Prompts go
// to stderr so stdout stays free for the caller protocol. Answering
// anything other than "y" or "yes" denies.
type TerminalGate struct {
	in  io.Reader
	out io.Writer

	// isTerminal is overridable for tests.
	isTerminal func() bool
}

func NewTerminalGate() *TerminalGate {
	return &TerminalGate{
		in:  os.Stdin,
		out: os.Stderr,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func (g *TerminalGate) Decide(ctx context.Context, req Request) (bool, error) {
	if !g.isTerminal() {
		logger.Warn("approval: no terminal attached, denying %s of %s", req.Kind, req.Path)
		return false, nil
	}

	fmt.Fprintf(g.out, "\n%s %s\n",
		gateTitleStyle.Render(fmt.Sprintf("[%s]", req.Kind)),
		gatePathStyle.Render(req.Path))
	if req.Preview != "" {
		wrapped := wordwrap.String(req.Preview, gateWrapWidth)
		for _, line := range strings.Split(wrapped, "\n") {
			fmt.Fprintln(g.out, gatePreviewStyle.Render(line))
		}
	}
	fmt.Fprintf(g.out, "%s ", gatePromptStyle.Render("Apply this change? [y/N]"))

	type answer struct {
		text string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		reader := bufio.NewReader(g.in)
		line, err := reader.ReadString('\n')
		ch <- answer{text: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(g.out)
		logger.Info("approval: timed out waiting for decision on %s", req.Path)
		return false, nil
	case a := <-ch:
		if a.err != nil && a.text == "" {
			return false, nil
		}
		reply := strings.ToLower(strings.TrimSpace(a.text))
		return reply == "y" || reply == "yes", nil
	}
}
