//go:build noopencl

package opencl

import (
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/compute"
)

// ErrNotBuilt indicates the binary was built without OpenCL support.
var ErrNotBuilt = xerrors.New("opencl support was disabled with the 'noopencl' build tag")

var _ compute.Runtime = (*Runtime)(nil)

// Runtime is a placeholder when OpenCL support is not compiled.
type Runtime struct{}

func New(_ *zap.Logger) *Runtime {
	return &Runtime{}
}

func (r *Runtime) Platforms() ([]compute.Platform, error) {
	return nil, ErrNotBuilt
}

func (r *Runtime) CreateContext(_ compute.Platform, _ []compute.Device) (compute.Context, error) {
	return nil, ErrNotBuilt
}

func Describe() ([]compute.PlatformInfo, error) {
	return nil, ErrNotBuilt
}
