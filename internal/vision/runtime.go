package vision

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// InitRuntime loads the ONNX Runtime shared library and initializes the
// environment. An empty path selects the platform default name.
func InitRuntime(libPath string) error {
	if libPath == "" {
		libPath = DefaultLibraryPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

// DestroyRuntime releases the ONNX Runtime environment.
func DestroyRuntime() {
	_ = ort.DestroyEnvironment()
}

// DefaultLibraryPath returns the ONNX Runtime shared library name
// based on the operating system.
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
