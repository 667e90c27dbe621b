package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/stripe/internal/ir"
)

// ProgramField is the top-level CUE field a program is read from.
const ProgramField = "program"

// LoadFile reads a program from disk.
//
// A .json file holds the wire form. A .cue file, or a directory of .cue
// files forming one instance, must define a top-level "program" field that
// unifies with the #Program schema.
func LoadFile(path string) (*ir.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return loadCUE(path, ".")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		p, err := ir.UnmarshalProgram(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p.AllocateMissing()
		return p, nil
	case ".cue":
		return loadCUE(filepath.Dir(path), "./"+filepath.Base(path))
	default:
		return nil, fmt.Errorf("%s: unsupported program file (want .json or .cue)", path)
	}
}

func loadCUE(dir, arg string) (*ir.Program, error) {
	instances := load.Instances([]string{arg}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileProgram(value.LookupPath(cue.ParsePath(ProgramField)))
}
