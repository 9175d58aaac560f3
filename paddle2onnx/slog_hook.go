package paddle2onnx

import (
	"log/slog"
)

// SlogHook is a Hook that logs Converter operations via Go's structured logging (log/slog).
// It logs at Info level on success and Error level on failure.
//
// Example:
//
//	conv, _ := paddle2onnx.LoadConverter(&paddle2onnx.ConverterConfig{
//	    Hooks: []paddle2onnx.Hook{
//	        paddle2onnx.NewSlogHook(slog.Default()),
//	    },
//	})
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook creates a Hook that logs operations to the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogHook(logger *slog.Logger) *SlogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogHook{logger: logger}
}

func (h *SlogHook) BeforeCall(_ *CallInfo) {}

func (h *SlogHook) AfterCall(info *CallInfo) {
	if info.Error != nil {
		h.logger.Error("paddle2onnx operation failed",
			slog.String("id", info.ID),
			slog.String("operation", string(info.Operation)),
			slog.Duration("duration", info.Duration),
			slog.Any("paths", info.Paths),
			slog.String("error", info.Error.Error()),
		)
	} else {
		h.logger.Info("paddle2onnx operation completed",
			slog.String("id", info.ID),
			slog.String("operation", string(info.Operation)),
			slog.Duration("duration", info.Duration),
			slog.Int("input_bytes", info.InputBytes),
			slog.Int("output_bytes", info.OutputBytes),
		)
	}
}
