package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/internal/input"
	"github.com/aretw0/moore/internal/presentation/graph"
	"github.com/aretw0/moore/internal/presentation/tui"
	"github.com/aretw0/moore/pkg/domain"
	"golang.org/x/term"
)

// ChatOptions configures Chat.
type ChatOptions struct {
	In  io.Reader
	Out io.Writer
	// Render formats assistant replies. Nil prints them unchanged.
	Render func(string) (string, error)
	// Styler colors prompts and errors. Nil writes plain text.
	Styler *tui.Styler
	// MaxInput bounds a single line. Zero uses input.MaxSize.
	MaxInput int
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Chat runs an interactive conversation with m until the input ends, the
// user quits, or the machine completes.
//
// Besides plain messages it understands:
//
//	exit, quit  leave the chat
//	/state      print the current state and context
//	/graph      print the machine as a Mermaid diagram with the visited path
//	/reset      start over from the initial state
func Chat(ctx context.Context, m *moore.Machine, opts ChatOptions) error {
	if opts.Render == nil {
		opts.Render = tui.PlainRenderer
	}
	if opts.MaxInput <= 0 {
		opts.MaxInput = input.MaxSize()
	}
	c := &chat{m: m, opts: opts}

	scanner := bufio.NewScanner(opts.In)
	scanner.Buffer(make([]byte, 0, min(4096, opts.MaxInput+1)), opts.MaxInput+1)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(opts.Out, c.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(opts.Out)
			err := scanner.Err()
			if errors.Is(err, bufio.ErrTooLong) {
				err = input.ErrTooLarge
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(opts.Out, "Bye!")
			return nil
		case "/state":
			c.printState()
			continue
		case "/graph":
			fmt.Fprint(opts.Out, graph.GenerateMermaid(m.Definition(), &graph.Overlay{
				Visited: m.Path(),
				Current: m.CurrentState(),
			}))
			continue
		case "/reset":
			m.Reset()
			fmt.Fprintln(opts.Out, c.faint("Conversation reset to "+m.CurrentState()))
			continue
		}

		done, err := c.turn(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

type chat struct {
	m    *moore.Machine
	opts ChatOptions
}

// turn runs one message. It reports done when the machine completed.
func (c *chat) turn(ctx context.Context, line string) (bool, error) {
	clean, err := input.Sanitize(line, c.opts.MaxInput)
	if err != nil {
		c.printError(err)
		return false, nil
	}

	res, err := c.m.Run(ctx, clean)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMachineCompleted):
		return true, nil
	case errors.Is(err, domain.ErrProvider), errors.Is(err, domain.ErrHandler):
		c.printError(err)
		return false, nil
	case ctx.Err() != nil:
		return true, nil
	default:
		return false, err
	}

	text, err := c.opts.Render(payloadText(res.Payload))
	if err != nil {
		text = payloadText(res.Payload)
	}
	fmt.Fprintln(c.opts.Out, text)

	if res.Transitioned {
		fmt.Fprintln(c.opts.Out, c.faint("-> "+c.state(res.State)))
	}
	if res.Completed {
		fmt.Fprintln(c.opts.Out, c.faint("Conversation complete."))
		return true, nil
	}
	return false, nil
}

func (c *chat) printState() {
	fmt.Fprintf(c.opts.Out, "state: %s\n", c.state(c.m.CurrentState()))
	if next, ok := c.m.NextState(); ok {
		fmt.Fprintf(c.opts.Out, "next:  %s\n", c.state(next))
	}
	snapshot := c.m.ContextSnapshot()
	if len(snapshot) == 0 {
		return
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.opts.Out, "context: %s\n", data)
}

func (c *chat) prompt() string {
	p := c.m.CurrentState() + " > "
	if c.opts.Styler == nil {
		return p
	}
	return c.opts.Styler.Prompt(p)
}

func (c *chat) state(id string) string {
	if c.opts.Styler == nil {
		return id
	}
	return c.opts.Styler.State(id)
}

func (c *chat) faint(text string) string {
	if c.opts.Styler == nil {
		return text
	}
	return c.opts.Styler.Faint(text)
}

func (c *chat) printError(err error) {
	msg := "Error: " + err.Error()
	if c.opts.Styler != nil {
		msg = c.opts.Styler.Error(msg)
	}
	fmt.Fprintln(c.opts.Out, msg)
}

// payloadText turns a handler payload into printable text.
func payloadText(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(data)
}
