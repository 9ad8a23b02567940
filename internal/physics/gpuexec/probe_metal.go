//go:build !metal

package gpuexec

// probeMetal is the no-CGO stub: without the metal build tag and the
// matching toolchain, Metal is never available and the executor falls
// back to CPU. Mirrors the teacher's pkg/gpu/metal stub split.
func probeMetal(index int) (*DeviceInfo, error) {
	return nil, ErrNoDevice
}
