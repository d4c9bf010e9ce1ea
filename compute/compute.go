// Package compute describes the slice of a compute API that clbin drives:
// enumerating platforms and devices, creating a context over a selection and
// building programs from source or from previously compiled binaries.
package compute

import (
	"fmt"
	"strings"
)

type Device struct {
	Platform int // Index of the owning platform in the enumeration.
	Index    int // Index of the device within its platform.
	Name     string
	Vendor   string
	Handle   interface{} // Backend specific device id.
}

type Platform struct {
	Index   int
	Name    string
	Vendor  string
	Devices []Device
	Handle  interface{} // Backend specific platform id.
}

type Runtime interface {
	// Platforms enumerates every platform with all of its devices, in the
	// order the native API reports them.
	Platforms() ([]Platform, error)

	// CreateContext creates one context over devices, all of which belong to
	// platform.
	CreateContext(platform Platform, devices []Device) (Context, error)
}

type Context interface {
	Devices() []Device

	// BuildProgram compiles source for every device of the context. A failed
	// compilation returns a *BuildError and no program.
	BuildProgram(source, options string) (Program, error)

	// ProgramWithBinaries creates a program from one compiled binary per
	// context device, in device order.
	ProgramWithBinaries(binaries [][]byte) (Program, error)

	Release()
}

type Program interface {
	// Binaries returns the compiled binary of every device, in device order.
	Binaries() ([][]byte, error)
	Release()
}

type DeviceLog struct {
	Device Device
	Log    string
}

type BuildError struct {
	Status string
	Logs   []DeviceLog
}

func (e *BuildError) Error() string {
	names := make([]string, 0, len(e.Logs))
	for _, l := range e.Logs {
		names = append(names, l.Device.Name)
	}
	return fmt.Sprintf("build failed (%s) on [%s]", e.Status, strings.Join(names, ", "))
}
