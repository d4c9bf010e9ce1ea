package selector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/compute"
)

// MaxDevices bounds how many pairs a single selector may name.
const MaxDevices = 64

var (
	ErrEmpty          = xerrors.New("no devices selected")
	ErrTooManyDevices = xerrors.New("too many devices selected")
	ErrMixedPlatforms = xerrors.New("selected devices span more than one platform")
)

var pairPattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

type Pair struct {
	Platform int
	Device   int
}

func (p Pair) String() string {
	return fmt.Sprintf("%d-%d", p.Platform, p.Device)
}

// Selector is an ordered list of platform-device pairs.
type Selector []Pair

// NotFoundError reports a pair that does not name an existing device.
type NotFoundError struct {
	Pair Pair
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("device %s does not exist", e.Pair)
}

// Selection is a resolved selector: the platform backing the context and the
// devices in selector order.
type Selection struct {
	Platform compute.Platform
	Devices  []compute.Device
}

func isDelim(r rune) bool {
	return r == ',' || r == ';' || r == ' '
}

// Parse reads a list of platform-device pairs separated by ',', ';' or ' '.
// Tokens that are not of the form <uint>-<uint> are skipped. Nil is returned
// when nothing usable is left.
func Parse(arg string) Selector {
	var sel Selector
	for _, token := range strings.FieldsFunc(arg, isDelim) {
		m := pairPattern.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		platform, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		device, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		sel = append(sel, Pair{platform, device})
	}
	return sel
}

func (s Selector) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

// Resolve maps every pair onto the live enumeration. Any pair that does not
// exist aborts the whole selection.
func (s Selector) Resolve(platforms []compute.Platform) (*Selection, error) {
	if len(s) == 0 {
		return nil, ErrEmpty
	}
	if len(s) > MaxDevices {
		return nil, xerrors.Errorf("%d pairs, at most %d: %w", len(s), MaxDevices, ErrTooManyDevices)
	}

	devices := make([]compute.Device, 0, len(s))
	for _, p := range s {
		if p.Platform >= len(platforms) || p.Device >= len(platforms[p.Platform].Devices) {
			return nil, &NotFoundError{p}
		}
		devices = append(devices, platforms[p.Platform].Devices[p.Device])
	}

	// One context is bound to exactly one platform.
	first := s[0].Platform
	for _, p := range s[1:] {
		if p.Platform != first {
			return nil, xerrors.Errorf("%s and %s: %w", s[0], p, ErrMixedPlatforms)
		}
	}

	return &Selection{Platform: platforms[first], Devices: devices}, nil
}
