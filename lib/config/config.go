/*package config reads and validates remora's run configuration files.
Files use gcfg's ini-like syntax:

    [decomposition]
    nx = 2
    ny = 2
    nz = 1
    lx = 30.0
    ly = 30.0
    lz = 10.0
    GhostWidth = 1.5

    [run]
    steps = 100
    seed = 1337
    threads = -1
*/
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

// Decomposition configures the global box and the rank grid.
type Decomposition struct {
	Nx, Ny, Nz int
	Lx, Ly, Lz float64
	GhostWidth float64
}

// Run configures a demo/benchmark run.
type Run struct {
	Steps   int
	Seed    int64
	Threads int
}

// File is a parsed configuration file.
type File struct {
	Decomposition Decomposition
	Run           Run
}

// DefaultFile returns the configuration used when a field or section is
// left out.
func DefaultFile() *File {
	return &File{
		Decomposition: Decomposition{
			Nx: 1, Ny: 1, Nz: 1,
			Lx: 10, Ly: 10, Lz: 10,
			GhostWidth: 1,
		},
		Run: Run{Steps: 1, Seed: 0, Threads: -1},
	}
}

// Read parses the configuration file at fname and validates it.
func Read(fname string) (*File, error) {
	f := DefaultFile()
	if err := gcfg.ReadFileInto(f, fname); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the configuration for errors the user needs to fix.
func (f *File) Validate() error {
	d := &f.Decomposition
	n := [3]int{d.Nx, d.Ny, d.Nz}
	l := [3]float64{d.Lx, d.Ly, d.Lz}
	names := [3]string{"x", "y", "z"}

	for dim := 0; dim < 3; dim++ {
		if n[dim] < 1 {
			return fmt.Errorf("The decomposition has n%s = %d, but every grid width must be at least 1.", names[dim], n[dim])
		}
		if l[dim] <= 0 {
			return fmt.Errorf("The global box has l%s = %g, but every box width must be positive.", names[dim], l[dim])
		}
	}

	if d.GhostWidth <= 0 {
		return fmt.Errorf("The configured GhostWidth is %g, but it must be positive.", d.GhostWidth)
	}
	for dim := 0; dim < 3; dim++ {
		if n[dim] > 1 && 2*d.GhostWidth > l[dim]/float64(n[dim]) {
			return fmt.Errorf("The configured GhostWidth %g is more than half the sub-box width %g along %s.", d.GhostWidth, l[dim]/float64(n[dim]), names[dim])
		}
	}

	if f.Run.Steps < 0 {
		return fmt.Errorf("The configured step count is %d.", f.Run.Steps)
	}
	return nil
}
