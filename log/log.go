package log

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ALL = iota + 0
	DEBUG
	INFO
	WARN
	ERROR
)

const (
	_callerInfo = "NoCallerFile"
)

var DefaultDebugLevel = DEBUG

const CallHierarchy int = 2

var _log = NewNop()

// Logger is the diagnostic sink handed to publishers and brokers.
// Messages below level are dropped before reaching zap.
type Logger struct {
	z     *zap.Logger
	level int
}

func NewNop() *Logger {
	return &Logger{z: zap.NewNop(), level: ERROR + 1}
}

func Wrap(z *zap.Logger, level int) *Logger {
	if z == nil {
		return NewNop()
	}

	return &Logger{z: z, level: level}
}

func New(servername string, level int) (*Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.FullCallerEncoder,
	}
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel(level)),
		Development:      level <= DEBUG,
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		InitialFields:    map[string]interface{}{"servername": servername},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger %w", err)
	}

	return &Logger{z: z, level: level}, nil
}

func zapLevel(level int) zapcore.Level {
	switch {
	case level <= DEBUG:
		return zap.DebugLevel
	case level == INFO:
		return zap.InfoLevel
	case level == WARN:
		return zap.WarnLevel
	default:
		return zap.ErrorLevel
	}
}

func (l *Logger) Enabled(level int) bool {
	return l != nil && level >= l.level
}

func (l *Logger) With(f ...zapcore.Field) *Logger {
	if l == nil {
		return NewNop()
	}

	return &Logger{z: l.z.With(f...), level: l.level}
}

func (l *Logger) Zap() *zap.Logger {
	return l.z
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) Debug(p string, f ...zapcore.Field) {
	if !l.Enabled(DEBUG) {
		return
	}

	l.z.Debug(p, withCaller(CallHierarchy, f)...)
}

func (l *Logger) Info(p string, f ...zapcore.Field) {
	if !l.Enabled(INFO) {
		return
	}

	l.z.Info(p, withCaller(CallHierarchy, f)...)
}

func (l *Logger) Warn(p string, f ...zapcore.Field) {
	if !l.Enabled(WARN) {
		return
	}

	l.z.Warn(p, withCaller(CallHierarchy, f)...)
}

func (l *Logger) Error(p string, f ...zapcore.Field) {
	if !l.Enabled(ERROR) {
		return
	}

	l.z.Error(p, withCaller(CallHierarchy, f)...)
}

func withCaller(depth int, f []zapcore.Field) []zapcore.Field {
	_, file, line, ok := runtime.Caller(depth)
	callerInfo := _callerInfo

	if ok {
		callerInfo = fmt.Sprintf("%s:%d", file, line)
	}

	t := []zapcore.Field{zap.String("caller", callerInfo)}

	return append(t, f...)
}

func Default() *Logger {
	return _log
}

func Info(p string, f ...zapcore.Field) {
	if !_log.Enabled(INFO) {
		return
	}

	_log.z.Info(p, withCaller(CallHierarchy, f)...)
}

func Warn(p string, f ...zapcore.Field) {
	if !_log.Enabled(WARN) {
		return
	}

	_log.z.Warn(p, withCaller(CallHierarchy, f)...)
}

func Debug(p string, f ...zapcore.Field) {
	if !_log.Enabled(DEBUG) {
		return
	}

	_log.z.Debug(p, withCaller(CallHierarchy, f)...)
}

func Error(p string, f ...zapcore.Field) {
	if !_log.Enabled(ERROR) {
		return
	}

	_log.z.Error(p, withCaller(CallHierarchy, f)...)
}

func Init(servername string) {
	l, err := New(servername, DefaultDebugLevel)
	if err != nil {
		panic(fmt.Sprintf("log init failed: %v", err))
	}

	_log = l
}

func SetDefault(l *Logger) {
	if l == nil {
		l = NewNop()
	}

	_log = l
}
