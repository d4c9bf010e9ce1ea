package compute

import (
	"fmt"
	"io"
)

// WritePlatforms prints every platform followed by its devices, with the
// indices a selector refers to.
func WritePlatforms(w io.Writer, platforms []Platform) error {
	for _, p := range platforms {
		if _, err := fmt.Fprintf(w, "Platform #%d - %s (%s)\n", p.Index, p.Name, p.Vendor); err != nil {
			return err
		}
		for _, d := range p.Devices {
			if _, err := fmt.Fprintf(w, "\tDevice #%d - %s (%s)\n", d.Index, d.Name, d.Vendor); err != nil {
				return err
			}
		}
	}
	return nil
}
