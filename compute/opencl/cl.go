//go:build !noopencl

// Package opencl implements compute.Runtime on top of the OpenCL C API.
//
// Program binaries have no counterpart in github.com/jgillich/go-opencl, so
// contexts and programs go through cgo directly. Indices and handles match the
// enumeration order of clGetPlatformIDs / clGetDeviceIDs(CL_DEVICE_TYPE_ALL),
// which is also what go-opencl reports for the info listing.
package opencl

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo windows LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

static const char* clbin_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_PROPERTY: return "CL_INVALID_PROPERTY";
	case CL_INVALID_BINARY: return "CL_INVALID_BINARY";
	case CL_INVALID_BUILD_OPTIONS: return "CL_INVALID_BUILD_OPTIONS";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	default: return "CL_UNKNOWN_ERROR";
	}
}
*/
import "C"

import (
	"fmt"
)

// StatusError is a non-success cl_int returned by the native API.
type StatusError struct {
	Call   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Call, statusName(C.cl_int(e.Status)), e.Status)
}

func statusName(status C.cl_int) string {
	return C.GoString(C.clbin_error_string(status))
}

func statusError(call string, status C.cl_int) error {
	return &StatusError{Call: call, Status: int(status)}
}
