package launcher

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// atomicLevel is shared by every logger NewLogger returns, so a single
// config reload can raise or lower verbosity across the whole process.
var atomicLevel = zap.NewAtomicLevel()

// NewLogger builds the daemon's base structured logger: JSON-encoded,
// RFC3339 timestamps, level controlled by SetDebug.
func NewLogger() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atomicLevel,
	)
	return zap.New(core)
}

// SetDebug raises or lowers the shared logging level.
func SetDebug(enable bool) {
	if enable {
		atomicLevel.SetLevel(zap.DebugLevel)
		return
	}
	atomicLevel.SetLevel(zap.InfoLevel)
}
