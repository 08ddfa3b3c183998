package vadplus

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortMu          sync.Mutex
	ortInitialized bool
)

// InitRuntime loads the ONNX Runtime shared library and initializes the
// environment. An empty libPath searches the bundled locations and then falls
// back to the system default. Repeated calls after success are no-ops.
func InitRuntime(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortInitialized {
		return nil
	}
	if libPath == "" {
		libPath = resolveBundledLib(candidateBaseDirs())
	}
	if libPath != "" {
		if !pathExists(libPath) {
			return fmt.Errorf("onnxruntime: library %s not found", libPath)
		}
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxruntime: initialize: %w", err)
	}
	ortInitialized = true
	return nil
}

// DestroyRuntime tears down the environment. Scorers must be closed first.
func DestroyRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if !ortInitialized {
		return nil
	}
	ortInitialized = false
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("onnxruntime: destroy: %w", err)
	}
	return nil
}

// pathExists reports whether p can be stat'ed.
func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Bundled runtime layouts searched by InitRuntime, relative to the working
// directory and the executable directory:
//
//	data/onnxruntime_<arch>.<ext>
//	lib/<os>_<arch>/libonnxruntime.<ext>
const (
	BundledLibDir = "lib"
	DataDir       = "data"
)

// bundledLibNames returns the filenames tried under lib/<os>_<arch>/. Linux
// releases ship a versioned .so, so the exact version is tried before the
// soname and the unversioned link.
func bundledLibNames() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"libonnxruntime.dylib"}
	case "windows":
		return []string{"onnxruntime.dll"}
	default:
		return []string{"libonnxruntime.so.1.22.0", "libonnxruntime.so.1", "libonnxruntime.so"}
	}
}

// dataDirLibName returns the flat filename used under data/, which carries
// the architecture in the name (onnxruntime_amd64.so, onnxruntime_arm64.dylib).
// Windows keeps the plain DLL name.
func dataDirLibName() string {
	switch runtime.GOOS {
	case "darwin":
		return "onnxruntime_" + runtime.GOARCH + ".dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "onnxruntime_" + runtime.GOARCH + ".so"
	}
}

// runtimePlatform names the lib/ subdirectory for this build, e.g. linux_amd64.
func runtimePlatform() string {
	return runtime.GOOS + "_" + runtime.GOARCH
}

// candidateBaseDirs returns the directories searched for a bundled runtime:
// the working directory, then the executable's directory when it differs.
func candidateBaseDirs() []string {
	cwd, _ := os.Getwd()
	exe, err := os.Executable()
	if err != nil {
		return []string{cwd}
	}
	if dir := filepath.Dir(exe); dir != cwd {
		return []string{cwd, dir}
	}
	return []string{cwd}
}

// libCandidates lists every runtime path tried for bases in search order.
// The data/ file of every base comes before any lib/<platform>/ file. Empty
// bases are skipped.
func libCandidates(bases []string) []string {
	var data, lib []string
	platform := runtimePlatform()
	for _, base := range bases {
		if base == "" {
			continue
		}
		data = append(data, filepath.Join(base, DataDir, dataDirLibName()))
		for _, name := range bundledLibNames() {
			lib = append(lib, filepath.Join(base, BundledLibDir, platform, name))
		}
	}
	return append(data, lib...)
}

// resolveBundledLib returns the first of libCandidates(bases) that exists, or
// "" so the caller falls back to the system library.
func resolveBundledLib(bases []string) string {
	for _, p := range libCandidates(bases) {
		if pathExists(p) {
			return p
		}
	}
	return ""
}
