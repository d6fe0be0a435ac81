package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// Sentinel errors returned by LoadDir. Wrapped; test with errors.Is.
var (
	ErrNotDirectory  = errors.New("not a directory")
	ErrNoDefinitions = errors.New("no definitions found")
)

// LoadDir compiles the definitions in dir.
//
// A directory containing .cue files is loaded as one CUE package. Otherwise
// a schema.yaml (or schema.yml) in dir is decoded with DecodeYAML.
func LoadDir(dir string) (*taxonomy.Schema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("definitions directory: %w: %s", ErrNotDirectory, dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(cueFiles) > 0 {
		return loadCUE(dir)
	}

	for _, name := range []string{"schema.yaml", "schema.yml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return DecodeYAML(data)
	}

	return nil, fmt.Errorf("%w in %s", ErrNoDefinitions, dir)
}

func loadCUE(dir string) (*taxonomy.Schema, error) {
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSchema(value)
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
