package pretty

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/pentops/logcat/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrinter(t *testing.T) (*Printer, *bytes.Buffer) {
	buff := &bytes.Buffer{}
	return NewPrinter(buff, WithLogger(log.NewTestLogger(t))), buff
}

func TestCopy(t *testing.T) {
	var tcs = []struct {
		name  string
		input string
		want  string
		lines int
	}{
		{
			name:  "order kept",
			input: "A B {\"a\":1}\nC D not json\nE F []\n",
			want:  "A B {\n    \"a\": 1\n}\nC D not json\nE F []\n",
			lines: 3,
		},
		{
			name:  "crlf terminators",
			input: "A B 1\r\nC D 2\r\n",
			want:  "A B 1\nC D 2\n",
			lines: 2,
		},
		{
			name:  "last line without terminator",
			input: "A B 1\nC D 2",
			want:  "A B 1\nC D 2\n",
			lines: 2,
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
			lines: 0,
		},
	}

	for _, tt := range tcs {
		t.Run(tt.name, func(t *testing.T) {
			printer, buff := testPrinter(t)
			lines, err := printer.Copy(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.lines, lines)
			assert.Equal(t, tt.want, buff.String())
		})
	}
}

func TestCopyLineCount(t *testing.T) {
	input := &strings.Builder{}
	for i := 0; i < 100; i++ {
		input.WriteString("ts INFO {\"i\":[]}\n")
	}

	printer, buff := testPrinter(t)
	lines, err := printer.Copy(context.Background(), strings.NewReader(input.String()))
	require.NoError(t, err)
	assert.Equal(t, 100, lines)
	assert.Equal(t, 300, strings.Count(buff.String(), "\n"))
}

func TestCopyLongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	printer, buff := testPrinter(t)
	lines, err := printer.Copy(context.Background(), strings.NewReader("A B \""+long+"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, lines)
	assert.Equal(t, "A B \""+long+"\"\n", buff.String())
}

func TestCopyStopsOnShortLine(t *testing.T) {
	printer, buff := testPrinter(t)
	lines, err := printer.Copy(context.Background(), strings.NewReader("A B []\nonlytwo tokens\nC D []\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooFewFields))
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, lines)
	assert.Equal(t, "A B []\n", buff.String())
}

func TestCopyStopsOnBlankLine(t *testing.T) {
	printer, buff := testPrinter(t)
	lines, err := printer.Copy(context.Background(), strings.NewReader("\nA B []\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooFewFields))
	assert.Equal(t, 0, lines)
	assert.Empty(t, buff.String())
}

func TestCopyReadError(t *testing.T) {
	readErr := errors.New("disk on fire")
	printer, _ := testPrinter(t)
	_, err := printer.Copy(context.Background(), iotest.ErrReader(readErr))
	require.Error(t, err)
	assert.True(t, errors.Is(err, readErr))
	assert.Contains(t, err.Error(), "read input")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func TestCopyWriteError(t *testing.T) {
	printer := NewPrinter(failingWriter{}, WithLogger(log.NewTestLogger(t)))
	lines, err := printer.Copy(context.Background(), strings.NewReader("A B []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write output")
	assert.Equal(t, 0, lines)
}

func TestPrintRawLine(t *testing.T) {
	printer, buff := testPrinter(t)
	require.NoError(t, printer.PrintRawLine(`A B {"k":"v"}`))
	assert.Equal(t, "A B {\n    \"k\": \"v\"\n}\n", buff.String())

	err := printer.PrintRawLine("short")
	assert.True(t, errors.Is(err, ErrTooFewFields))
}

func TestWriterInterceptor(t *testing.T) {
	printer, buff := testPrinter(t)
	w := printer.WriterInterceptor()

	chunks := []string{"A B {\"a\"", ":1}\nX Y ", "[]\r\nQ R not", " json"}
	for _, chunk := range chunks {
		n, err := w.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	assert.Equal(t, "A B {\n    \"a\": 1\n}\nX Y []\n", buff.String())

	require.NoError(t, w.Close())
	assert.Equal(t, "A B {\n    \"a\": 1\n}\nX Y []\nQ R not json\n", buff.String())
}

func TestWriterInterceptorFatalIsSticky(t *testing.T) {
	printer, buff := testPrinter(t)
	w := printer.WriterInterceptor()

	_, err := w.Write([]byte("A B []\nbad line\nC D []\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooFewFields))

	_, err = w.Write([]byte("E F []\n"))
	assert.True(t, errors.Is(err, ErrTooFewFields))
	assert.True(t, errors.Is(w.Close(), ErrTooFewFields))

	assert.Equal(t, "A B []\n", buff.String())
}

func TestCopyDiagnostics(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := log.Configure(logs, func(key string) string {
		if key == "LOG_LEVEL" {
			return "debug"
		}
		return ""
	})

	printer := NewPrinter(&bytes.Buffer{}, WithLogger(logger))
	ctx := log.WithNewTrace(context.Background())
	_, err := printer.Copy(ctx, strings.NewReader("A B []\nC D nope\n"))
	require.NoError(t, err)

	entries := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, entries, 2)

	type entry struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Fields  map[string]any `json:"fields"`
	}

	var passThrough, done entry
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &passThrough))
	require.NoError(t, json.Unmarshal([]byte(entries[1]), &done))

	assert.Equal(t, "DEBUG", passThrough.Level)
	assert.Equal(t, "payload is not JSON, passing through", passThrough.Message)
	assert.Equal(t, float64(2), passThrough.Fields["line"])
	assert.NotEmpty(t, passThrough.Fields["trace"])

	assert.Equal(t, "input exhausted", done.Message)
	assert.Equal(t, float64(2), done.Fields["lines"])
	assert.Equal(t, passThrough.Fields["trace"], done.Fields["trace"])
}
