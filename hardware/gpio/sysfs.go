package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultSysfsRoot is where the kernel mounts the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// Sysfs is a Backend on top of /sys/class/gpio.
type Sysfs struct {
	// Root overrides DefaultSysfsRoot
	Root string
}

// compile-time check for whether Sysfs satisfies the Backend interface
var _ Backend = Sysfs{}

const (
	exportAttempts = 10
	exportBackoff  = 50 * time.Millisecond
)

func (s Sysfs) root() string {
	if s.Root == "" {
		return DefaultSysfsRoot
	}
	return s.Root
}

func (s Sysfs) linePath(line int) string {
	return filepath.Join(s.root(), "gpio"+strconv.Itoa(line))
}

func dirExists(f string) bool {
	fi, err := os.Stat(f)
	if err != nil {
		return false
	}

	return fi.IsDir()
}

// Export asks the kernel to expose line, unless it's already exported.
func (s Sysfs) Export(line int) error {
	path := s.linePath(line)
	if dirExists(path) {
		return nil
	}

	if err := os.WriteFile(filepath.Join(s.root(), "export"), []byte(strconv.Itoa(line)), 0200); err != nil {
		return fmt.Errorf("unable to export line %d: %w", line, err)
	}

	// udev rules take a moment to fix up permissions on the new directory, so
	// poll until it shows up or give up
	for i := 0; i < exportAttempts; i++ {
		if dirExists(path) {
			return nil
		}
		time.Sleep(exportBackoff)
	}

	return fmt.Errorf("can't access exported directory for line %d", line)
}

// Open opens one attribute file of an exported line for reading and writing.
func (s Sysfs) Open(line int, attr Attr) (Handle, error) {
	f, err := os.OpenFile(filepath.Join(s.linePath(line), string(attr)), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s of line %d: %w", attr, line, err)
	}

	return f, nil
}
