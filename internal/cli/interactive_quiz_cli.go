// Package cli runs interactive study sessions in a terminal.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var errEnd = errors.New("end")

// InteractiveQuizCLI contains the terminal plumbing shared by sessions.
type InteractiveQuizCLI struct {
	stdinReader  *bufio.Reader
	stdoutWriter io.Writer

	// stdin is read by one goroutine so a prompt can give up on ctx
	readOnce sync.Once
	lines    chan inputLine
	stopOnce sync.Once
	stopped  chan struct{}

	bold         *color.Color
	italic       *color.Color
	green        *color.Color
	red          *color.Color
}

func newInteractiveQuizCLI(stdin io.Reader, stdout io.Writer) *InteractiveQuizCLI {
	return &InteractiveQuizCLI{
		stdinReader:  bufio.NewReader(stdin),
		stdoutWriter: stdout,
		stopped:      make(chan struct{}),
		bold:         color.New(color.Bold),
		italic:       color.New(color.Italic),
		green:        color.New(color.FgGreen),
		red:          color.New(color.FgRed),
	}
}

type inputLine struct {
	text string
	err  error
}

type Session interface {
	Session(context context.Context) error
}

// Run calls session.Session until it ends the session, fails or ctx is
// done, and returns once the session has stopped.
func (cli *InteractiveQuizCLI) Run(ctx context.Context, session Session) error {
	ctx, cancel := signal.NotifyContext(
		ctx,
		os.Interrupt,
	)
	defer cancel()
	defer cli.stopOnce.Do(func() { close(cli.stopped) })

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for ctx.Err() == nil {
			if err := session.Session(ctx); err != nil {
				if !errors.Is(err, errEnd) && ctx.Err() == nil {
					errCh <- err
				}
				return
			}
		}
	}()

	err := <-errCh
	if ctx.Err() != nil {
		fmt.Fprintln(cli.stdoutWriter, "Received interrupt signal, exiting...")
		return nil
	}
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}
	return nil
}

func (cli *InteractiveQuizCLI) readStdin() {
	cli.lines = make(chan inputLine)
	go func() {
		defer close(cli.lines)
		for {
			line, err := cli.stdinReader.ReadString('\n')
			select {
			case cli.lines <- inputLine{text: line, err: err}:
			case <-cli.stopped:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// readLine returns the trimmed next line. EOF ends the session.
func (cli *InteractiveQuizCLI) readLine(ctx context.Context) (string, error) {
	cli.readOnce.Do(cli.readStdin)

	var in inputLine
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case next, ok := <-cli.lines:
		if !ok {
			return "", errEnd
		}
		in = next
	}

	line, err := in.text, in.err
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errEnd
		}
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "q", "quit", "exit":
		return true
	}
	return false
}
