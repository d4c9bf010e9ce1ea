package program

import (
	"strings"

	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/compute"
)

// fakeRuntime stands in for the native API. Compiling a source yields one
// binary per device made of the device name and the source text; a source
// containing "#error" fails to build.
type fakeRuntime struct {
	platforms   []compute.Platform
	platformErr error
	contextErr  error

	contexts []*fakeContext
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		platforms: []compute.Platform{
			{
				Index: 0, Name: "Portable Computing Language", Vendor: "The pocl project",
				Devices: []compute.Device{
					{Platform: 0, Index: 0, Name: "cpu-haswell", Vendor: "GenuineIntel"},
					{Platform: 0, Index: 1, Name: "cpu-skylake", Vendor: "GenuineIntel"},
				},
			},
			{
				Index: 1, Name: "NVIDIA CUDA", Vendor: "NVIDIA Corporation",
				Devices: []compute.Device{
					{Platform: 1, Index: 0, Name: "GeForce GTX 1080", Vendor: "NVIDIA Corporation"},
				},
			},
		},
	}
}

func (r *fakeRuntime) Platforms() ([]compute.Platform, error) {
	if r.platformErr != nil {
		return nil, r.platformErr
	}
	return r.platforms, nil
}

func (r *fakeRuntime) CreateContext(platform compute.Platform, devices []compute.Device) (compute.Context, error) {
	if r.contextErr != nil {
		return nil, r.contextErr
	}
	c := &fakeContext{platform: platform, devices: devices}
	r.contexts = append(r.contexts, c)
	return c, nil
}

func (r *fakeRuntime) builds() int {
	n := 0
	for _, c := range r.contexts {
		n += c.builds
	}
	return n
}

func (r *fakeRuntime) binaryLoads() int {
	n := 0
	for _, c := range r.contexts {
		n += c.binaryLoads
	}
	return n
}

type fakeContext struct {
	platform compute.Platform
	devices  []compute.Device

	builds      int
	binaryLoads int
	options     string
	loaded      [][]byte
	released    bool
}

func (c *fakeContext) Devices() []compute.Device { return c.devices }

func (c *fakeContext) BuildProgram(source, options string) (compute.Program, error) {
	c.builds++
	c.options = options
	if strings.Contains(source, "#error") {
		logs := make([]compute.DeviceLog, len(c.devices))
		for i, d := range c.devices {
			logs[i] = compute.DeviceLog{Device: d, Log: "<source>:1:2: error: " + d.Name}
		}
		return nil, &compute.BuildError{Status: "CL_BUILD_PROGRAM_FAILURE", Logs: logs}
	}
	binaries := make([][]byte, len(c.devices))
	for i, d := range c.devices {
		binaries[i] = []byte(d.Name + ":" + source)
	}
	return &fakeProgram{binaries: binaries}, nil
}

func (c *fakeContext) ProgramWithBinaries(binaries [][]byte) (compute.Program, error) {
	c.binaryLoads++
	if len(binaries) != len(c.devices) {
		return nil, xerrors.New("CL_INVALID_VALUE")
	}
	c.loaded = binaries
	return &fakeProgram{binaries: binaries}, nil
}

func (c *fakeContext) Release() { c.released = true }

type fakeProgram struct {
	binaries    [][]byte
	binariesErr error
	released    bool
}

func (p *fakeProgram) Binaries() ([][]byte, error) {
	if p.binariesErr != nil {
		return nil, p.binariesErr
	}
	return p.binaries, nil
}

func (p *fakeProgram) Release() { p.released = true }
