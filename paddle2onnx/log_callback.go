package paddle2onnx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benedoc-inc/paddle2onnx/internal/cstrings"
	"github.com/ebitengine/purego"
)

// Native log levels passed to the log callback.
const (
	nativeLogDebug int32 = 0
	nativeLogInfo  int32 = 1
	nativeLogWarn  int32 = 2
	nativeLogError int32 = 3
)

var (
	nativeLogger atomic.Pointer[slog.Logger]

	// purego callbacks are never freed, so exactly one is created per process.
	logCallbackOnce sync.Once
	logCallback     uintptr
)

func nativeLogCallback() uintptr {
	logCallbackOnce.Do(func() {
		logCallback = purego.NewCallback(forwardNativeLog)
	})
	return logCallback
}

func forwardNativeLog(level int32, msg *byte) {
	logger := nativeLogger.Load()
	if logger == nil {
		return
	}
	logger.Log(context.Background(), nativeLogLevel(level), cstrings.CStringToString(msg),
		slog.String("source", "paddle2onnx"),
	)
}

func nativeLogLevel(level int32) slog.Level {
	switch {
	case level <= nativeLogDebug:
		return slog.LevelDebug
	case level == nativeLogInfo:
		return slog.LevelInfo
	case level == nativeLogWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
