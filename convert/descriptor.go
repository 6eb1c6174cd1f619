// Package convert implements the type-gated model conversion pipeline.
//
// Raw family-specific conversion data must pass its family's validation gate
// before any conversion work begins. Validation produces a Validated wrapper
// whose only constructor lives in this package, so a Pipeline can never be
// built around unvalidated data. The pipeline then executes the family's
// step catalogue strictly in order, fail-fast, preserving the failing
// process's exit code verbatim.
package convert

import (
	"fmt"
	"os"

	"github.com/pyrite-io/smelt/types"
)

// Data is a raw, unvalidated family-specific description of conversion
// inputs. Implementations carry whatever fields their family needs; the
// interface exposes only what the gate and pipeline require uniformly.
type Data interface {
	// Family identifies the model family this data describes.
	Family() types.Family
	// SourcePath is the location of the primary source model input.
	SourcePath() string
}

// Env carries converter toolchain locations and explicit defaults.
// Defaults derived from the machine (thread count) are computed once by the
// caller at startup and passed in here, never read ambiently.
type Env struct {
	// PythonPath is the python interpreter used for converter scripts.
	PythonPath string
	// PthScript is the PyTorch-checkpoint-to-ggml converter script path.
	PthScript string
	// GPT4AllScript is the gpt4all-to-ggml converter script path.
	GPT4AllScript string
	// QuantizeBin is the quantization tool path.
	QuantizeBin string
	// MigrateBin is the ggml container migration tool path.
	MigrateBin string
	// Threads is the thread count passed to converters that accept one.
	Threads int
}

// PlannedStep is one executable unit of a family's catalogue: the step
// identity plus the external command that realizes it.
type PlannedStep struct {
	// ID is the step identifier, matching the family catalogue position.
	ID types.StepID
	// Argv is the command line; Argv[0] is the binary.
	Argv []string
	// Dir is the working directory. Empty inherits the caller's.
	Dir string
}

// Descriptor is the per-family binding of required-files declaration,
// validation rules, the fixed step catalogue, and pipeline planning.
// Descriptors are stateless package values; one exists per family.
type Descriptor interface {
	// Family identifies the model family this descriptor handles.
	Family() types.Family
	// RequiredFiles lists every file that must exist for d to be
	// convertible. The gate probes exactly this list; a file the family
	// check depends on must appear here.
	RequiredFiles(d Data) ([]string, error)
	// Steps is the ordered step catalogue, fixed at definition time and
	// independent of any particular data instance.
	Steps() []types.StepID
	// Check applies family-specific validation beyond file existence.
	// Called only after every required file probed as found. Must be a
	// pure read-only inspection; it spawns nothing and writes nothing.
	Check(d Data, probes []types.FileProbe) error
	// Plan produces the executable commands for the catalogue, one per
	// step, in catalogue order.
	Plan(v Validated, env Env) ([]PlannedStep, error)
	// Result builds the family-specific success payload.
	Result(v Validated, env Env) *types.Result
}

// Validated proves that a Data instance passed its family's validation
// gate. It wraps the original data unchanged; its existence is the proof.
// The zero value is invalid and is rejected by NewPipeline.
type Validated struct {
	data Data
}

// Data returns the wrapped conversion data.
func (v Validated) Data() Data { return v.data }

func (v Validated) valid() bool { return v.data != nil }

// Validate runs the family's validation gate against d.
//
// Every file the descriptor declares as required is probed for existence;
// if probesOut is non-nil it receives the full probe list so callers can
// render a pre-flight checklist without duplicating validation logic. A
// missing file fails with ValidationMissingFile before the family check
// runs, which keeps RequiredFiles and the gate consistent by construction.
//
// Validation is a pure read-only check: no conversion work happens and no
// processes spawn. Given identical data and filesystem state the outcome
// is deterministic.
func Validate(desc Descriptor, d Data, probesOut *[]types.FileProbe) (Validated, error) {
	if d == nil {
		return Validated{}, fmt.Errorf("conversion data is nil")
	}
	if d.Family() != desc.Family() {
		return Validated{}, fmt.Errorf("descriptor %s cannot validate %s data", desc.Family(), d.Family())
	}

	files, err := desc.RequiredFiles(d)
	if err != nil {
		return Validated{}, err
	}

	probes := make([]types.FileProbe, 0, len(files))
	for _, path := range files {
		probes = append(probes, types.FileProbe{Path: path, Found: fileExists(path)})
	}
	if probesOut != nil {
		*probesOut = probes
	}

	if missing := types.MissingPaths(probes); len(missing) > 0 {
		return Validated{}, &types.ValidationError{
			Family: desc.Family(),
			Kind:   types.ValidationMissingFile,
			Path:   missing[0],
		}
	}

	if err := desc.Check(d, probes); err != nil {
		return Validated{}, err
	}

	return Validated{data: d}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
