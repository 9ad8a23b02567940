//go:build !cuda

package gpuexec

// probeCUDA is the no-CGO stub: without the cuda build tag and the
// matching toolchain, CUDA is never available and the executor falls
// back to CPU. Mirrors the teacher's pkg/gpu/cuda stub split.
func probeCUDA(index int) (*DeviceInfo, error) {
	return nil, ErrNoDevice
}
