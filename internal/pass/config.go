package pass

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// byName maps a pass's registered name to its constructor, so a custom
// pipeline file can name passes without the caller wiring up Pass values
// by hand.
var byName = map[string]func() Pass{
	"simplify-cfg": SimplifyCFG,
	"mem2reg":      Mem2Reg,
	"sccp":         SCCP,
	"peephole":     Peephole,
	"dce":          DCE,
	"inline":       Inline,
	"loop-unroll":  LoopUnroll,
	"check-opt":    CheckOpt,
}

// pipelineFile is the on-disk shape of a custom pipeline definition file:
//
//	pipelines:
//	  O3:
//	    - inline
//	    - sccp
//	    - dce
type pipelineFile struct {
	Pipelines map[string][]string `yaml:"pipelines"`
}

// LoadPipelineFile reads a YAML file naming one or more custom pipelines
// by composing the builtin passes in a caller-chosen order, and returns
// them as a name -> []Pass map ready for RegisterPipeline. This lets a
// deployment extend the builtin O0/O1/O2 pipelines without a rebuild.
func LoadPipelineFile(path string) (map[string][]Pass, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc pipelineFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pass: parsing pipeline file %s: %w", path, err)
	}

	out := make(map[string][]Pass, len(doc.Pipelines))
	for name, passNames := range doc.Pipelines {
		passes := make([]Pass, 0, len(passNames))
		for _, pn := range passNames {
			ctor, ok := byName[pn]
			if !ok {
				return nil, fmt.Errorf("pass: pipeline %q names unknown pass %q", name, pn)
			}
			passes = append(passes, ctor())
		}
		out[name] = passes
	}
	return out, nil
}

// RegisterPipeline adds or overrides a named pipeline the Manager will
// run for RunPipeline(m, name). It cannot override the builtin O0, which
// always stays the verifier-only pipeline.
func (mgr *Manager) RegisterPipeline(name string, passes []Pass) error {
	if name == "O0" {
		return fmt.Errorf("pass: O0 is reserved for the verifier-only pipeline")
	}
	if mgr.custom == nil {
		mgr.custom = make(map[string][]Pass)
	}
	mgr.custom[name] = passes
	return nil
}
