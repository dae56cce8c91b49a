package gpio

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSysfs lays out an exported line the way the kernel does.
func fakeSysfs(t *testing.T, lines ...int) Sysfs {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "export"), nil, 0600))

	for _, line := range lines {
		dir := filepath.Join(root, "gpio"+strconv.Itoa(line))
		require.NoError(t, os.Mkdir(dir, 0755))

		for attr, v := range map[Attr]string{
			AttrValue:     "0\n",
			AttrDirection: "in\n",
			AttrEdge:      "none\n",
			AttrActiveLow: "0\n",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, string(attr)), []byte(v), 0600))
		}
	}

	return Sysfs{Root: root}
}

func TestSysfsExportSkipsExportedLine(t *testing.T) {
	s := fakeSysfs(t, 42)

	require.NoError(t, s.Export(42))

	b, err := os.ReadFile(filepath.Join(s.Root, "export"))
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestSysfsExportWaitsForDirectory(t *testing.T) {
	s := fakeSysfs(t)

	// stands in for the kernel and udev creating the line directory
	go func() {
		time.Sleep(2 * exportBackoff)
		_ = os.Mkdir(filepath.Join(s.Root, "gpio7"), 0755)
	}()

	require.NoError(t, s.Export(7))

	b, err := os.ReadFile(filepath.Join(s.Root, "export"))
	require.NoError(t, err)
	assert.Equal(t, "7", string(b))
}

func TestSysfsExportGivesUp(t *testing.T) {
	s := fakeSysfs(t)

	err := s.Export(9)
	assert.Error(t, err)
}

func TestSysfsExportWithoutInterface(t *testing.T) {
	s := Sysfs{Root: filepath.Join(t.TempDir(), "missing")}

	assert.Error(t, s.Export(1))
}

func TestSysfsOpenMissingLine(t *testing.T) {
	s := fakeSysfs(t)

	_, err := s.Open(3, AttrValue)
	assert.Error(t, err)
}

func TestSysfsAttributes(t *testing.T) {
	s := fakeSysfs(t, 11)

	h, err := s.Open(11, AttrValue)
	require.NoError(t, err)
	defer h.Close()

	v, err := readAttr(h)
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	require.NoError(t, writeAttr(h, "1"))

	v, err = readAttr(h)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestEngineOverSysfs(t *testing.T) {
	s := fakeSysfs(t, 30, 31)

	e := New(s, []int{30, 31, 32}, Options{NoExitHook: true})
	err := e.Init()
	defer e.Free()

	// line 32 was never exported and the fake kernel doesn't create it
	assert.Equal(t, ErrUnusableExport, CodeOf(err))
	assert.True(t, e.IsUsable(0))
	assert.True(t, e.IsUsable(1))
	assert.False(t, e.IsUsable(2))

	require.NoError(t, e.SetMode(0, Out))
	require.NoError(t, e.Write(0, High))

	b, err := os.ReadFile(filepath.Join(s.Root, "gpio30", "direction"))
	require.NoError(t, err)
	assert.Equal(t, "out", string(b))

	b, err = os.ReadFile(filepath.Join(s.Root, "gpio30", "value"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(b))

	require.NoError(t, os.WriteFile(filepath.Join(s.Root, "gpio31", "value"), []byte("1\n"), 0600))
	level, err := e.Read(1)
	require.NoError(t, err)
	assert.Equal(t, High, level)
}
