//go:build !noopencl

package opencl

/*
#include <stdlib.h>
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
*/
import "C"

import (
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/compute"
)

type Context struct {
	ctx     C.cl_context
	ids     []C.cl_device_id
	devices []compute.Device
	log     *zap.Logger
}

func (c *Context) Devices() []compute.Device {
	return c.devices
}

func (c *Context) Release() {
	if c.ctx != nil {
		C.clReleaseContext(c.ctx)
		c.ctx = nil
	}
}

func (c *Context) BuildProgram(source, options string) (compute.Program, error) {
	c_source := C.CString(source)
	defer C.free(unsafe.Pointer(c_source))
	length := C.size_t(len(source))

	var status C.cl_int
	prog := C.clCreateProgramWithSource(c.ctx, 1, &c_source, &length, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}
	if err := c.build(prog, options); err != nil {
		C.clReleaseProgram(prog)
		return nil, err
	}
	return &Program{prog: prog, n_devices: len(c.ids)}, nil
}

// ProgramWithBinaries creates a program from one binary per device and builds
// it, which turns the binaries into an executable without invoking the
// compiler front end.
func (c *Context) ProgramWithBinaries(binaries [][]byte) (compute.Program, error) {
	if len(binaries) != len(c.ids) {
		return nil, xerrors.Errorf("%d binaries for %d devices", len(binaries), len(c.ids))
	}

	// The pointer array handed to C must not hold Go pointers, so every
	// binary is copied into C memory.
	lengths := make([]C.size_t, len(binaries))
	ptrs := make([]*C.uchar, len(binaries))
	for i, b := range binaries {
		lengths[i] = C.size_t(len(b))
		ptrs[i] = (*C.uchar)(C.CBytes(b))
	}
	defer func() {
		for _, p := range ptrs {
			C.free(unsafe.Pointer(p))
		}
	}()

	binary_status := make([]C.cl_int, len(binaries))
	var status C.cl_int
	prog := C.clCreateProgramWithBinary(c.ctx, C.cl_uint(len(c.ids)), &c.ids[0], &lengths[0], &ptrs[0], &binary_status[0], &status)
	if status != C.CL_SUCCESS {
		for i, s := range binary_status {
			if s != C.CL_SUCCESS {
				c.log.Warn("binary rejected", zap.String("device", c.devices[i].Name), zap.String("status", statusName(s)))
			}
		}
		return nil, statusError("clCreateProgramWithBinary", status)
	}
	if err := c.build(prog, ""); err != nil {
		C.clReleaseProgram(prog)
		return nil, err
	}
	return &Program{prog: prog, n_devices: len(c.ids)}, nil
}

func (c *Context) build(prog C.cl_program, options string) error {
	c_options := C.CString(options)
	defer C.free(unsafe.Pointer(c_options))

	status := C.clBuildProgram(prog, C.cl_uint(len(c.ids)), &c.ids[0], c_options, nil, nil)
	if status == C.CL_SUCCESS {
		return nil
	}
	if status != C.CL_BUILD_PROGRAM_FAILURE {
		return statusError("clBuildProgram", status)
	}

	// Collect the log of every device.
	build_err := &compute.BuildError{Status: statusName(status)}
	for i, id := range c.ids {
		log, err := buildLog(prog, id)
		if err != nil {
			log = err.Error()
		}
		build_err.Logs = append(build_err.Logs, compute.DeviceLog{Device: c.devices[i], Log: log})
	}
	return build_err
}

func buildLog(prog C.cl_program, device C.cl_device_id) (string, error) {
	var size C.size_t
	if status := C.clGetProgramBuildInfo(prog, device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError("clGetProgramBuildInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, int(size))
	if status := C.clGetProgramBuildInfo(prog, device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError("clGetProgramBuildInfo(value)", status)
	}
	return trimNull(buf), nil
}

type Program struct {
	prog      C.cl_program
	n_devices int
}

// Binaries queries CL_PROGRAM_BINARY_SIZES and CL_PROGRAM_BINARIES. The
// binaries come back in the device order of the context.
func (p *Program) Binaries() ([][]byte, error) {
	sizes := make([]C.size_t, p.n_devices)
	size_of_sizes := C.size_t(len(sizes)) * C.size_t(unsafe.Sizeof(sizes[0]))
	if status := C.clGetProgramInfo(p.prog, C.CL_PROGRAM_BINARY_SIZES, size_of_sizes, unsafe.Pointer(&sizes[0]), nil); status != C.CL_SUCCESS {
		return nil, statusError("clGetProgramInfo(CL_PROGRAM_BINARY_SIZES)", status)
	}

	// The native side fills the buffers the pointer array names; those live
	// in C memory.
	ptr_size := C.size_t(unsafe.Sizeof(uintptr(0)))
	ptrs := make([]*C.uchar, len(sizes))
	for i, s := range sizes {
		if s > 0 {
			ptrs[i] = (*C.uchar)(C.malloc(s))
		}
	}
	defer func() {
		for _, ptr := range ptrs {
			if ptr != nil {
				C.free(unsafe.Pointer(ptr))
			}
		}
	}()

	if status := C.clGetProgramInfo(p.prog, C.CL_PROGRAM_BINARIES, C.size_t(len(ptrs))*ptr_size, unsafe.Pointer(&ptrs[0]), nil); status != C.CL_SUCCESS {
		return nil, statusError("clGetProgramInfo(CL_PROGRAM_BINARIES)", status)
	}

	binaries := make([][]byte, len(sizes))
	for i, s := range sizes {
		if s == 0 {
			binaries[i] = []byte{}
			continue
		}
		binaries[i] = C.GoBytes(unsafe.Pointer(ptrs[i]), C.int(s))
	}
	return binaries, nil
}

func (p *Program) Release() {
	if p.prog != nil {
		C.clReleaseProgram(p.prog)
		p.prog = nil
	}
}
