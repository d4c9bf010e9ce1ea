//go:build !noopencl

package opencl

import (
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"

	"github.com/moratsam/clbin/compute"
	u "github.com/moratsam/clbin/util"
)

// Describe collects the verbose properties of every platform and device.
func Describe() ([]compute.PlatformInfo, error) {
	// Get platforms.
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, u.WrapErr("get platforms", err)
	}

	infos := make([]compute.PlatformInfo, 0, len(platforms))
	for i, platform := range platforms {
		info := compute.PlatformInfo{
			Index:   i,
			Name:    platform.Name(),
			Vendor:  platform.Vendor(),
			Profile: platform.Profile(),
			Version: platform.Version(),
		}

		// Get devices.
		devices, err := platform.GetDevices(cl.DeviceTypeAll)
		if err != nil {
			return nil, u.WrapErr("get devices of "+info.Name, err)
		}
		for j, device := range devices {
			info.Devices = append(info.Devices, describeDevice(i, j, device))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func describeDevice(platform_ix, device_ix int, device *cl.Device) compute.DeviceInfo {
	return compute.DeviceInfo{
		Index:                 device_ix,
		Selector:              fmt.Sprintf("%d-%d", platform_ix, device_ix),
		Name:                  device.Name(),
		Type:                  device.Type().String(),
		Vendor:                device.Vendor(),
		Version:               device.Version(),
		DriverVersion:         device.DriverVersion(),
		OpenCLCVersion:        device.OpenCLCVersion(),
		AddressBits:           int(device.AddressBits()),
		LittleEndian:          device.EndianLittle(),
		MaxComputeUnits:       int(device.MaxComputeUnits()),
		MaxClockFrequency:     int(device.MaxClockFrequency()),
		GlobalMemSize:         int64(device.GlobalMemSize()),
		GlobalMemCacheSize:    int64(device.GlobalMemCacheSize()),
		LocalMemSize:          int64(device.LocalMemSize()),
		MaxConstantBufferSize: int64(device.MaxConstantBufferSize()),
		MaxMemAllocSize:       int64(device.MaxMemAllocSize()),
		MaxWorkGroupSize:      int(device.MaxWorkGroupSize()),
		MaxWorkItemSizes:      device.MaxWorkItemSizes(),
		Extensions:            strings.Fields(device.Extensions()),
	}
}
