// Package console is the line-oriented front-end of the scanner.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/anders-m-mygind/masa-app/internal/app"
	"github.com/anders-m-mygind/masa-app/internal/history"
)

// Session is the set of scanner actions the console drives.
type Session interface {
	SetCredential(raw string)
	ClearCredential()
	TestCredential()
	EnableCamera()
	StopCamera()
	Capture()
	Analyze()
	View() app.View
	History() []history.Entry
}

func parseCommand(s string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(s), " ")
	return strings.ToLower(parts[0]), parts[1:]
}

// Console reads commands line by line and dispatches them to a Session.
type Console struct {
	session  Session
	renderer *Renderer
	out      io.Writer
}

func New(session Session, renderer *Renderer, out io.Writer) *Console {
	return &Console{session: session, renderer: renderer, out: out}
}

// Run processes commands from in until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-errCh; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			if quit := c.Handle(line); quit {
				return nil
			}
		}
	}
}

// Handle runs one command line and reports whether the user asked to quit.
func (c *Console) Handle(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	cmd, args := parseCommand(line)
	log.Debug().Str("command", cmd).Msg("console command")

	switch cmd {
	case "key":
		c.session.SetCredential(strings.Join(args, " "))
	case "clear-key":
		c.session.ClearCredential()
	case "test-key":
		c.session.TestCredential()
	case "camera":
		c.session.EnableCamera()
	case "stop":
		c.session.StopCamera()
	case "capture":
		c.session.Capture()
	case "analyze":
		c.session.Analyze()
	case "history":
		fmt.Fprintln(c.out, c.renderer.History(c.session.History()))
	case "status":
		fmt.Fprintln(c.out, c.renderer.Summary(c.session.View()))
	case "help", "?":
		fmt.Fprintln(c.out, formatReplyText(helpText))
	case "quit", "exit":
		fmt.Fprintln(c.out, MsgGoodbye)
		return true
	default:
		fmt.Fprintln(c.out, formatReplyText(MsgUnknownCommand, cmd))
	}
	return false
}
