package utils

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu         sync.RWMutex
	baseLogger = zap.NewNop()
	logFile    *os.File
)

// InitLogger configures the process-wide logger. Output goes to stderr and,
// when filePath is set, is also appended to that file.
func InitLogger(level, filePath string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewDevelopmentConfig().EncoderConfig
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), lvl),
	}

	var handle *os.File
	if filePath = strings.TrimSpace(filePath); filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		handle, err = os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.AddSync(handle), lvl))
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = handle
	baseLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = baseLogger.Sync()
}

type Logger struct {
	name string
}

func NewLogger() *Logger {
	return &Logger{}
}

func NewNamedLogger(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if l == nil || l.name == "" {
		return baseLogger.Sugar()
	}
	return baseLogger.Named(l.name).Sugar()
}

func (l *Logger) LogError(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
}

func (l *Logger) LogWarning(format string, args ...interface{}) {
	l.sugar().Warnf(format, args...)
}

func (l *Logger) LogInfo(format string, args ...interface{}) {
	l.sugar().Infof(format, args...)
}

func (l *Logger) LogDebug(format string, args ...interface{}) {
	l.sugar().Debugf(format, args...)
}

func (l *Logger) LogRequest(r *http.Request) {
	l.sugar().Infow("bridge request",
		"method", r.Method,
		"path", r.URL.Path,
		"userAgent", getHeaderValue(r, "User-Agent", "Unknown"),
		"origin", getHeaderValue(r, "Origin", "Direct"),
	)
}

func (l *Logger) LogResponse(r *http.Request, start time.Time) {
	l.sugar().Infow("bridge response", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (l *Logger) LogCORS(r *http.Request) {
	l.sugar().Debugf("OPTIONS %s - CORS preflight request", r.URL.Path)
}

func (l *Logger) LogNotFound(method, path string) {
	l.sugar().Warnf("404 - Not Found: %s %s", method, path)
}

func (l *Logger) LogMethodNotAllowed(method, path string) {
	l.sugar().Warnf("405 - Method Not Allowed: %s %s", method, path)
}

func (l *Logger) LogJSONError(err error) {
	l.sugar().Errorf("Error encoding JSON response: %v", err)
}

func (l *Logger) LogExtensionInfo(identifier, version string) {
	l.sugar().Infow("extension resolved", "identifier", identifier, "version", version)
}

func (l *Logger) LogDownloadRequest(identifier, fileName string) {
	l.sugar().Infow("download request", "identifier", identifier, "file", fileName)
}

func (l *Logger) LogDatabaseOperation(operation string, err error) {
	if err != nil {
		l.sugar().Errorf("Database %s ERROR: %v", operation, err)
	} else {
		l.sugar().Debugf("Database %s: SUCCESS", operation)
	}
}

func (l *Logger) LogFileOperation(operation, filePath string, err error) {
	if err != nil {
		l.sugar().Errorf("File %s ERROR: %s - %v", operation, filePath, err)
	} else {
		l.sugar().Infof("File %s SUCCESS: %s", operation, filePath)
	}
}

func (l *Logger) LogServerStart(addr string) {
	l.sugar().Infof("Starting bridge server on %s", addr)
}

func (l *Logger) LogServerStop(err error) {
	if err != nil {
		l.sugar().Errorf("Server stopped with error: %v", err)
	} else {
		l.sugar().Infof("Server stopped gracefully")
	}
}

func getHeaderValue(r *http.Request, key, fallback string) string {
	if value := r.Header.Get(key); value != "" {
		return value
	}
	return fallback
}
