package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
)

// StartCPUProfile starts writing a CPU profile to filename. The returned func stops it.
func StartCPUProfile(filename string) (func(), error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "could not create CPU profile")
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "could not start CPU profile")
	}

	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

// CaptureMemoryProfile writes a heap profile to filename.
func CaptureMemoryProfile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not create memory profile")
	}
	defer f.Close()

	runtime.GC() // up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, "could not write memory profile")
	}

	return nil
}
