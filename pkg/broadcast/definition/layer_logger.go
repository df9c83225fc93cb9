package definition

import "github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"

// LayerLogger scopes an underlying Logger to one protocol layer, gating
// Info/Debug output by DebugMode and DebugAlgorithm exactly as the reference
// implementation's DEBUG_MODE/DEBUG_ALGORITHM environment variables do
// (SPEC_FULL.md §12): DebugMode 0 suppresses this layer's output entirely,
// 1 allows its deliver lines, 2 additionally allows its Debug/Debugf calls.
// DebugAlgorithm further restricts output to a single named layer unless set
// to "all". Warn/Error always pass through -- they are never purely a debug
// concern.
type LayerLogger struct {
	inner types.Logger
	layer types.DebugAlgorithm
	mode  int
	algo  types.DebugAlgorithm
}

// NewLayerLogger wraps inner for the given layer under cfg's debug settings.
func NewLayerLogger(inner types.Logger, layer types.DebugAlgorithm, cfg *types.Config) *LayerLogger {
	return &LayerLogger{inner: inner, layer: layer, mode: cfg.DebugMode, algo: cfg.DebugAlgorithm}
}

func (l *LayerLogger) selected() bool {
	return l.algo == types.DebugAll || l.algo == l.layer
}

func (l *LayerLogger) Info(v ...interface{}) {
	if l.mode >= 1 && l.selected() {
		l.inner.Info(v...)
	}
}

func (l *LayerLogger) Infof(format string, v ...interface{}) {
	if l.mode >= 1 && l.selected() {
		l.inner.Infof(format, v...)
	}
}

func (l *LayerLogger) Warn(v ...interface{})                  { l.inner.Warn(v...) }
func (l *LayerLogger) Warnf(format string, v ...interface{})  { l.inner.Warnf(format, v...) }
func (l *LayerLogger) Error(v ...interface{})                 { l.inner.Error(v...) }
func (l *LayerLogger) Errorf(format string, v ...interface{}) { l.inner.Errorf(format, v...) }

func (l *LayerLogger) Debug(v ...interface{}) {
	if l.mode >= 2 && l.selected() {
		l.inner.Debug(v...)
	}
}

func (l *LayerLogger) Debugf(format string, v ...interface{}) {
	if l.mode >= 2 && l.selected() {
		l.inner.Debugf(format, v...)
	}
}

func (l *LayerLogger) ToggleDebug(value bool) bool {
	return l.inner.ToggleDebug(value)
}

var _ types.Logger = (*LayerLogger)(nil)
