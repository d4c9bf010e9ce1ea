package cmd

import (
	"strings"

	"github.com/moratsam/clbin/compute"
)

// fakeRuntime has one platform with two devices. A source containing
// "#error" fails to build.
type fakeRuntime struct{}

func (fakeRuntime) Platforms() ([]compute.Platform, error) {
	return []compute.Platform{{
		Index: 0, Name: "Portable Computing Language", Vendor: "The pocl project",
		Devices: []compute.Device{
			{Platform: 0, Index: 0, Name: "cpu-haswell", Vendor: "GenuineIntel"},
			{Platform: 0, Index: 1, Name: "cpu-skylake", Vendor: "GenuineIntel"},
		},
	}}, nil
}

func (fakeRuntime) CreateContext(_ compute.Platform, devices []compute.Device) (compute.Context, error) {
	return &fakeContext{devices: devices}, nil
}

type fakeContext struct {
	devices []compute.Device
}

func (c *fakeContext) Devices() []compute.Device { return c.devices }

func (c *fakeContext) BuildProgram(source, _ string) (compute.Program, error) {
	if strings.Contains(source, "#error") {
		logs := make([]compute.DeviceLog, len(c.devices))
		for i, d := range c.devices {
			logs[i] = compute.DeviceLog{Device: d, Log: "error: " + d.Name}
		}
		return nil, &compute.BuildError{Status: "CL_BUILD_PROGRAM_FAILURE", Logs: logs}
	}
	binaries := make([][]byte, len(c.devices))
	for i, d := range c.devices {
		binaries[i] = []byte(d.Name + ":" + source)
	}
	return fakeProgram(binaries), nil
}

func (c *fakeContext) ProgramWithBinaries(binaries [][]byte) (compute.Program, error) {
	return fakeProgram(binaries), nil
}

func (c *fakeContext) Release() {}

type fakeProgram [][]byte

func (p fakeProgram) Binaries() ([][]byte, error) { return p, nil }
func (p fakeProgram) Release()                    {}
