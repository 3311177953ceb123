package pretty

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pentops/logcat/log"
	"github.com/pkg/errors"
)

type Printer struct {
	output io.Writer
	logger log.Logger
}

// WithLogger sets where the printer reports per-line diagnostics. The default
// is log.DefaultLogger.
func WithLogger(logger log.Logger) func(*Printer) {
	return func(p *Printer) {
		p.logger = logger
	}
}

func NewPrinter(output io.Writer, opts ...func(*Printer)) *Printer {
	pp := &Printer{
		output: output,
		logger: log.DefaultLogger,
	}

	for _, opt := range opts {
		opt(pp)
	}

	return pp
}

// PrintRawLine formats a single line, without its terminator, and writes it
// followed by a newline. Lines which cannot be split are not written and the
// split error is returned.
func (p *Printer) PrintRawLine(line string) error {
	return p.printLine(context.Background(), 0, line)
}

func (p *Printer) printLine(ctx context.Context, lineNum int, line string) error {
	res := Format(line)
	if res.Outcome == Fatal {
		return res.Err
	}

	if res.Outcome == PassThrough {
		p.logger.Debug(log.WithFields(ctx, "line", lineNum), "payload is not JSON, passing through")
	}

	if _, err := fmt.Fprintf(p.output, "%s\n", res.Text); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}

// Copy reads lines from in until end of stream, writing each formatted line
// to the printer's output in order. It returns the number of lines written.
// A line that cannot be split ends the copy with an error wrapping
// ErrTooFewFields.
func (p *Printer) Copy(ctx context.Context, in io.Reader) (int, error) {
	reader := bufio.NewReader(in)
	written := 0

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return written, errors.Wrap(readErr, "read input")
		}

		// the last line may arrive without a terminator
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			if err := p.printLine(ctx, written+1, line); err != nil {
				return written, errors.Wrapf(err, "line %d", written+1)
			}
			written++
		}

		if readErr == io.EOF {
			p.logger.Debug(log.WithField(ctx, "lines", written), "input exhausted")
			return written, nil
		}
	}
}

type writeBuffer struct {
	buffer  []byte
	printer *Printer
	err     error
}

func (p *writeBuffer) Write(data []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.buffer = append(p.buffer, data...)

	if strings.Contains(string(p.buffer), "\n") {
		lines := strings.Split(string(p.buffer), "\n")
		for _, line := range lines[:len(lines)-1] {
			if err := p.printer.PrintRawLine(strings.TrimSuffix(line, "\r")); err != nil {
				p.err = err
				return len(data), err
			}
		}
		p.buffer = []byte(lines[len(lines)-1])
	}

	return len(data), nil
}

// Close flushes a trailing line which was written without a terminator.
func (p *writeBuffer) Close() error {
	if p.err != nil {
		return p.err
	}
	if len(p.buffer) == 0 {
		return nil
	}
	line := string(p.buffer)
	p.buffer = nil
	if err := p.printer.PrintRawLine(line); err != nil {
		p.err = err
		return err
	}
	return nil
}

// WriterInterceptor returns a writer which formats each complete line written
// to it. Close must be called to handle a final unterminated line. After a
// line fails to split, every later call returns that error.
func (p *Printer) WriterInterceptor() io.WriteCloser {
	return &writeBuffer{
		buffer:  []byte{},
		printer: p,
	}
}
