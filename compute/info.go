package compute

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlatformInfo is the verbose description of a platform printed by the info
// command.
type PlatformInfo struct {
	Index   int          `yaml:"index"`
	Name    string       `yaml:"name"`
	Vendor  string       `yaml:"vendor"`
	Profile string       `yaml:"profile"`
	Version string       `yaml:"version"`
	Devices []DeviceInfo `yaml:"devices"`
}

type DeviceInfo struct {
	Index                 int      `yaml:"index"`
	Selector              string   `yaml:"selector"` // Pair that selects this device.
	Name                  string   `yaml:"name"`
	Type                  string   `yaml:"type"`
	Vendor                string   `yaml:"vendor"`
	Version               string   `yaml:"version"`
	DriverVersion         string   `yaml:"driverVersion"`
	OpenCLCVersion        string   `yaml:"openclCVersion"`
	AddressBits           int      `yaml:"addressBits"`
	LittleEndian          bool     `yaml:"littleEndian"`
	MaxComputeUnits       int      `yaml:"maxComputeUnits"`
	MaxClockFrequency     int      `yaml:"maxClockFrequencyMHz"`
	GlobalMemSize         int64    `yaml:"globalMemSize"`
	GlobalMemCacheSize    int64    `yaml:"globalMemCacheSize"`
	LocalMemSize          int64    `yaml:"localMemSize"`
	MaxConstantBufferSize int64    `yaml:"maxConstantBufferSize"`
	MaxMemAllocSize       int64    `yaml:"maxMemAllocSize"`
	MaxWorkGroupSize      int      `yaml:"maxWorkGroupSize"`
	MaxWorkItemSizes      []int    `yaml:"maxWorkItemSizes,flow"`
	Extensions            []string `yaml:"extensions"`
}

func WriteInfoYAML(w io.Writer, platforms []PlatformInfo) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]PlatformInfo{"platforms": platforms}); err != nil {
		return err
	}
	return enc.Close()
}

func WriteInfoText(w io.Writer, platforms []PlatformInfo) error {
	var b strings.Builder
	for _, p := range platforms {
		fmt.Fprintf(&b, "Platform #%d - %s (%s)\n", p.Index, p.Name, p.Vendor)
		fmt.Fprintf(&b, "\tprofile: %s\n\tversion: %s\n", p.Profile, p.Version)
		for _, d := range p.Devices {
			fmt.Fprintf(&b, "\tDevice #%d - %s (%s) [select with %s]\n", d.Index, d.Name, d.Vendor, d.Selector)
			info := []struct {
				name  string
				value interface{}
			}{
				{"type", d.Type},
				{"version", d.Version},
				{"driver version", d.DriverVersion},
				{"openCL C version", d.OpenCLCVersion},
				{"address bits", d.AddressBits},
				{"little endian", d.LittleEndian},
				{"max compute units", d.MaxComputeUnits},
				{"max clock frequency", d.MaxClockFrequency},
				{"global mem size", d.GlobalMemSize},
				{"global mem cache size", d.GlobalMemCacheSize},
				{"local mem size", d.LocalMemSize},
				{"max constant buffer size", d.MaxConstantBufferSize},
				{"max mem alloc size", d.MaxMemAllocSize},
				{"max work group size", d.MaxWorkGroupSize},
				{"max workitem sizes", d.MaxWorkItemSizes},
				{"extensions", strings.Join(d.Extensions, " ")},
			}
			for _, i := range info {
				fmt.Fprintf(&b, "\t\t%s: %v\n", i.name, i.value)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
