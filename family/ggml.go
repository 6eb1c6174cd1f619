package family

import (
	"fmt"
	"os"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

// GGMLData describes an already-converted ggml model file in an older
// container version that needs migration to the current one.
type GGMLData struct {
	ModelPath string
}

// Family implements convert.Data.
func (d *GGMLData) Family() types.Family { return types.FamilyGGML }

// SourcePath implements convert.Data.
func (d *GGMLData) SourcePath() string { return d.ModelPath }

type ggmlDescriptor struct{}

func (ggmlDescriptor) Family() types.Family { return types.FamilyGGML }

func (ggmlDescriptor) Steps() []types.StepID {
	return []types.StepID{types.StepMigrate}
}

func (ggmlDescriptor) RequiredFiles(d convert.Data) ([]string, error) {
	gd, err := ggmlData(d)
	if err != nil {
		return nil, err
	}
	return []string{gd.ModelPath}, nil
}

func (ggmlDescriptor) Check(d convert.Data, _ []types.FileProbe) error {
	gd, err := ggmlData(d)
	if err != nil {
		return err
	}

	info, err := os.Stat(gd.ModelPath)
	if err != nil || info.IsDir() {
		return &types.ValidationError{
			Family: types.FamilyGGML,
			Kind:   types.ValidationInvalidPath,
			Path:   gd.ModelPath,
			Detail: "model path must be a regular file",
		}
	}

	magic, err := readMagic(gd.ModelPath)
	if err != nil {
		return &types.ValidationError{
			Family: types.FamilyGGML,
			Kind:   types.ValidationMalformedMetadata,
			Path:   gd.ModelPath,
			Detail: err.Error(),
		}
	}
	switch magic {
	case magicGGML, magicGGMF:
		return nil
	case magicGGJT:
		return &types.ValidationError{
			Family: types.FamilyGGML,
			Kind:   types.ValidationUnsupportedVersion,
			Path:   gd.ModelPath,
			Detail: "model is already in the current container version",
		}
	default:
		return &types.ValidationError{
			Family: types.FamilyGGML,
			Kind:   types.ValidationMalformedMetadata,
			Path:   gd.ModelPath,
			Detail: fmt.Sprintf("unrecognized magic 0x%08x", magic),
		}
	}
}

func (ggmlDescriptor) Plan(v convert.Validated, env convert.Env) ([]convert.PlannedStep, error) {
	gd, err := ggmlData(v.Data())
	if err != nil {
		return nil, err
	}

	return []convert.PlannedStep{
		{
			ID:   types.StepMigrate,
			Argv: []string{env.MigrateBin, gd.ModelPath, migratedPath(gd.ModelPath)},
		},
	}, nil
}

func (ggmlDescriptor) Result(v convert.Validated, _ convert.Env) *types.Result {
	gd, err := ggmlData(v.Data())
	if err != nil {
		return &types.Result{}
	}
	return &types.Result{ModelPath: migratedPath(gd.ModelPath)}
}

func ggmlData(d convert.Data) (*GGMLData, error) {
	gd, ok := d.(*GGMLData)
	if !ok {
		return nil, fmt.Errorf("ggml descriptor received %T", d)
	}
	return gd, nil
}
