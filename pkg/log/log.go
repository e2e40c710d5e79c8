package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// 日志级别
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

var (
	mu sync.RWMutex

	// 日志实例
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	fatalLogger *log.Logger

	// 当前日志级别
	currentRank = levelRank[LevelInfo]

	// exitFunc 在 Fatal 之后调用，测试中可替换
	exitFunc = os.Exit
)

func init() {
	setOutput(os.Stdout, os.Stderr)
}

// ValidLevel 判断日志级别是否合法
func ValidLevel(level string) bool {
	_, ok := levelRank[strings.ToLower(level)]
	return ok
}

// Init 初始化日志
// debug/info 输出到 stdout，warn/error/fatal 输出到 stderr；
// logFile 非空时同时追加写入该文件。
func Init(level, logFile string) error {
	level = strings.ToLower(level)
	if level == "" {
		level = LevelInfo
	}
	rank, ok := levelRank[level]
	if !ok {
		return fmt.Errorf("unknown log level: %q", level)
	}

	var out, errOut io.Writer = os.Stdout, os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %v", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		errOut = io.MultiWriter(os.Stderr, file)
	}

	mu.Lock()
	currentRank = rank
	mu.Unlock()
	setOutput(out, errOut)
	return nil
}

// SetOutput 替换日志输出，主要用于测试捕获
func SetOutput(out, errOut io.Writer) {
	setOutput(out, errOut)
}

func setOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	debugLogger = log.New(out, "[DEBUG] ", log.LstdFlags|log.Lshortfile)
	infoLogger = log.New(out, "[INFO] ", log.LstdFlags)
	warnLogger = log.New(errOut, "[WARN] ", log.LstdFlags)
	errorLogger = log.New(errOut, "[ERROR] ", log.LstdFlags|log.Lshortfile)
	fatalLogger = log.New(errOut, "[FATAL] ", log.LstdFlags|log.Lshortfile)
}

func enabled(level string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return levelRank[level] >= currentRank
}

func output(l *log.Logger, s string) {
	mu.RLock()
	defer mu.RUnlock()
	// calldepth 3: output -> Xxxf -> 调用方
	l.Output(3, s)
}

// Debug 输出调试日志
func Debug(v ...interface{}) {
	if enabled(LevelDebug) {
		output(debugLogger, fmt.Sprintln(v...))
	}
}

// Debugf 输出格式化调试日志
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		output(debugLogger, fmt.Sprintf(format, v...))
	}
}

// Info 输出信息日志
func Info(v ...interface{}) {
	if enabled(LevelInfo) {
		output(infoLogger, fmt.Sprintln(v...))
	}
}

// Infof 输出格式化信息日志
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		output(infoLogger, fmt.Sprintf(format, v...))
	}
}

// Warn 输出警告日志
func Warn(v ...interface{}) {
	if enabled(LevelWarn) {
		output(warnLogger, fmt.Sprintln(v...))
	}
}

// Warnf 输出格式化警告日志
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		output(warnLogger, fmt.Sprintf(format, v...))
	}
}

// Error 输出错误日志
func Error(v ...interface{}) {
	if enabled(LevelError) {
		output(errorLogger, fmt.Sprintln(v...))
	}
}

// Errorf 输出格式化错误日志
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		output(errorLogger, fmt.Sprintf(format, v...))
	}
}

// Fatal 输出致命错误日志并退出
func Fatal(v ...interface{}) {
	output(fatalLogger, fmt.Sprintln(v...))
	exitFunc(1)
}

// Fatalf 输出格式化致命错误日志并退出
func Fatalf(format string, v ...interface{}) {
	output(fatalLogger, fmt.Sprintf(format, v...))
	exitFunc(1)
}
