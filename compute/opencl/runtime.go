//go:build !noopencl

package opencl

/*
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
	u "github.com/moratsam/clbin/util"
)

// Returned by the ICD loader when no vendor platform is installed.
const platformNotFoundKHR = -1001

var ErrNoDevices = xerrors.New("no devices given")

var (
	_ compute.Runtime = (*Runtime)(nil)
	_ compute.Context = (*Context)(nil)
	_ compute.Program = (*Program)(nil)
)

type Runtime struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Runtime {
	return &Runtime{log: log.Named("opencl")}
}

func (r *Runtime) Platforms() ([]compute.Platform, error) {
	// Get platforms.
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status == platformNotFoundKHR || (status == C.CL_SUCCESS && count == 0) {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	ids := make([]C.cl_platform_id, int(count))
	if status := C.clGetPlatformIDs(count, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	platforms := make([]compute.Platform, 0, len(ids))
	for i, id := range ids {
		name, err := platformString(id, C.CL_PLATFORM_NAME)
		if err != nil {
			return nil, err
		}
		vendor, err := platformString(id, C.CL_PLATFORM_VENDOR)
		if err != nil {
			return nil, err
		}

		// Get devices.
		devices, err := platformDevices(i, id)
		if err != nil {
			return nil, u.WrapErr(name, err)
		}

		platforms = append(platforms, compute.Platform{
			Index:   i,
			Name:    name,
			Vendor:  vendor,
			Devices: devices,
			Handle:  id,
		})
	}
	return platforms, nil
}

func platformDevices(platform_ix int, platform C.cl_platform_id) ([]compute.Device, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}
	ids := make([]C.cl_device_id, int(count))
	if status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, count, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]compute.Device, 0, len(ids))
	for i, id := range ids {
		name, err := deviceString(id, C.CL_DEVICE_NAME)
		if err != nil {
			return nil, err
		}
		vendor, err := deviceString(id, C.CL_DEVICE_VENDOR)
		if err != nil {
			return nil, err
		}
		devices = append(devices, compute.Device{
			Platform: platform_ix,
			Index:    i,
			Name:     name,
			Vendor:   vendor,
			Handle:   id,
		})
	}
	return devices, nil
}

// CreateContext creates a context with CL_CONTEXT_PLATFORM set to platform.
func (r *Runtime) CreateContext(platform compute.Platform, devices []compute.Device) (compute.Context, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	platform_id, ok := platform.Handle.(C.cl_platform_id)
	if !ok {
		return nil, xerrors.Errorf("platform %q has no OpenCL handle", platform.Name)
	}
	ids, err := deviceIDs(devices)
	if err != nil {
		return nil, err
	}

	props := []C.cl_context_properties{
		C.CL_CONTEXT_PLATFORM, C.cl_context_properties(uintptr(unsafe.Pointer(platform_id))),
		0,
	}
	var status C.cl_int
	ctx := C.clCreateContext(&props[0], C.cl_uint(len(ids)), &ids[0], nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	r.log.Debug("context created", zap.String("platform", platform.Name), zap.Int("devices", len(ids)))
	return &Context{
		ctx:     ctx,
		ids:     ids,
		devices: devices,
		log:     r.log,
	}, nil
}

func deviceIDs(devices []compute.Device) ([]C.cl_device_id, error) {
	ids := make([]C.cl_device_id, len(devices))
	for i, d := range devices {
		id, ok := d.Handle.(C.cl_device_id)
		if !ok {
			return nil, xerrors.Errorf("device %d-%d (%s) has no OpenCL handle", d.Platform, d.Index, d.Name)
		}
		ids[i] = id
	}
	return ids, nil
}

func platformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	if status := C.clGetPlatformInfo(id, param, 0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, int(size))
	if status := C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}
	return trimNull(buf), nil
}

func deviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	if status := C.clGetDeviceInfo(id, param, 0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, int(size))
	if status := C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if n := len(buf); n > 0 && buf[n-1] == 0 {
		buf = buf[:n-1]
	}
	return string(buf)
}
