// Package log carries logcat's own diagnostics. Output goes to stderr so it
// never mixes with the formatted lines on stdout. It supports log key/value
// pairs passed through context
package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Logger interface {
	SetLevel(slog.Level)

	Debug(context.Context, string)
	Info(context.Context, string)
	Error(context.Context, string)
	Warn(context.Context, string)

	AddCollector(ContextCollector)
}

var DefaultLogger Logger

func init() {
	DefaultLogger = Configure(os.Stderr, os.Getenv)
}

// Configure builds a logger writing to out, reading LOG_FORMAT and LOG_LEVEL
// through getenv.
func Configure(out io.Writer, getenv func(string) string) *CallbackLogger {
	var formatter LogFunc
	switch getenv("LOG_FORMAT") {
	case "pretty":
		formatter = PrettyLog(out, SkipFields("app"))
	default: // json and not set
		formatter = JSONLog(out)
	}

	logger := NewCallbackLogger(formatter)
	logger.SetLevel(ParseLevel(getenv("LOG_LEVEL")))
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(ctx context.Context, msg string) {
	DefaultLogger.Debug(ctx, msg)
}

func Debugf(ctx context.Context, msg string, params ...any) {
	DefaultLogger.Debug(ctx, fmt.Sprintf(msg, params...))
}

func Info(ctx context.Context, msg string) {
	DefaultLogger.Info(ctx, msg)
}

func Infof(ctx context.Context, msg string, params ...any) {
	DefaultLogger.Info(ctx, fmt.Sprintf(msg, params...))
}

func Error(ctx context.Context, msg string) {
	DefaultLogger.Error(ctx, msg)
}

func Errorf(ctx context.Context, msg string, params ...any) {
	DefaultLogger.Error(ctx, fmt.Sprintf(msg, params...))
}

type LogFunc func(level string, message string, attrs []slog.Attr)

type CallbackLogger struct {
	Level      slog.Level
	Callback   LogFunc
	Collectors []ContextCollector
}

func NewCallbackLogger(callback LogFunc) *CallbackLogger {
	return &CallbackLogger{
		Callback:   callback,
		Collectors: []ContextCollector{DefaultContext, DefaultTrace},
	}
}

func (sl *CallbackLogger) SetLevel(level slog.Level) {
	sl.Level = level
}

func (sl CallbackLogger) Debug(ctx context.Context, msg string) {
	sl.log(ctx, slog.LevelDebug, msg)
}

func (sl CallbackLogger) Info(ctx context.Context, msg string) {
	sl.log(ctx, slog.LevelInfo, msg)
}

func (sl CallbackLogger) Warn(ctx context.Context, msg string) {
	sl.log(ctx, slog.LevelWarn, msg)
}

func (sl CallbackLogger) Error(ctx context.Context, msg string) {
	sl.log(ctx, slog.LevelError, msg)
}

func (sl *CallbackLogger) AddCollector(collector ContextCollector) {
	sl.Collectors = append(sl.Collectors, collector)
}

func (sl CallbackLogger) log(ctx context.Context, level slog.Level, msg string) {
	if level < sl.Level {
		return
	}
	fields := []slog.Attr{}
	for _, cb := range sl.Collectors {
		fields = append(fields, cb.LogFieldsFromContext(ctx)...)
	}
	sl.Callback(level.String(), msg, fields)
}

type TB interface {
	Logf(string, ...any)
}

func NewTestLogger(t TB) *CallbackLogger {
	ll := NewCallbackLogger(func(level string, msg string, fields []slog.Attr) {
		t.Logf("%s: %s", level, msg)
		for _, attr := range fields {
			t.Logf("  | %s: %v", attr.Key, attr.Value.Any())
		}
	})
	ll.SetLevel(slog.LevelDebug)
	return ll
}

type logEntry struct {
	Level   string    `json:"level"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Fields  attrMap   `json:"fields"`
}

type attrMap []slog.Attr

func (aa attrMap) find(key string) (any, bool) {
	for _, kv := range aa {
		if kv.Key == key {
			return kv.Value.Any(), true
		}
	}
	return nil, false
}

func (aa attrMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("{")
	for i, kv := range aa {
		if i != 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":")
		val, err := json.Marshal(kv.Value.Any())
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}

	buf.WriteString("}")
	return buf.Bytes(), nil
}

func jsonFormatter(out io.Writer, entry logEntry) {
	logLine, err := json.Marshal(entry)
	if err != nil {
		logLine, _ = json.Marshal(logEntry{
			Message: entry.Message,
			Time:    entry.Time,
			Level:   entry.Level,
			// Not passing through fields which is where the error would have
			// been
		})
	}
	out.Write(append(logLine, '\n')) // nolint: errcheck
}

func JSONLog(out io.Writer) LogFunc {
	return func(level string, msg string, attrs []slog.Attr) {
		jsonFormatter(out, logEntry{
			Level:   level,
			Time:    time.Now(),
			Message: msg,
			Fields:  attrMap(attrs),
		})
	}
}

type loggerOptions struct {
	skipFields map[string]struct{}
}

type LoggerOption func(*loggerOptions)

func SkipFields(fields ...string) LoggerOption {
	return func(o *loggerOptions) {
		if o.skipFields == nil {
			o.skipFields = map[string]struct{}{}
		}
		for _, field := range fields {
			o.skipFields[field] = struct{}{}
		}
	}
}

var levelColors = map[string]color.Attribute{
	"debug": color.FgBlue,
	"info":  color.FgGreen,
	"warn":  color.FgYellow,
	"error": color.FgRed,
}

// PrettyLog writes a coloured level and message, then one `| key: value` line
// per field. Composite values are indented JSON.
func PrettyLog(out io.Writer, optionFuncs ...LoggerOption) LogFunc {
	options := &loggerOptions{}

	for _, f := range optionFuncs {
		f(options)
	}

	return func(level string, msg string, attrs []slog.Attr) {
		whichColor, ok := levelColors[strings.ToLower(level)]
		if !ok {
			whichColor = color.FgWhite
		}

		levelColor := color.New(whichColor).SprintFunc()
		fmt.Fprintf(out, "%s: %s\n", levelColor(level), msg)

		for _, attr := range attrs {
			k := attr.Key
			v := attr.Value.Any()
			if _, skip := options.skipFields[k]; skip {
				continue
			}

			switch v.(type) {
			case string, int, int64, int32, float64, bool:
				fmt.Fprintf(out, "  | %s: %v\n", k, v)
			default:
				nice, _ := json.MarshalIndent(v, "  |  ", "  ")
				fmt.Fprintf(out, "  | %s: %s\n", k, string(nice))
			}
		}
	}
}
