package family

import (
	"fmt"
	"os"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

// GPT4AllData describes an unversioned gpt4all ggml .bin plus the
// sentencepiece tokenizer model it was trained with.
type GPT4AllData struct {
	ModelPath     string
	TokenizerPath string
}

// Family implements convert.Data.
func (d *GPT4AllData) Family() types.Family { return types.FamilyGPT4All }

// SourcePath implements convert.Data.
func (d *GPT4AllData) SourcePath() string { return d.ModelPath }

type gpt4allDescriptor struct{}

func (gpt4allDescriptor) Family() types.Family { return types.FamilyGPT4All }

func (gpt4allDescriptor) Steps() []types.StepID {
	return []types.StepID{types.StepCheckEnvironment, types.StepConvert}
}

func (gpt4allDescriptor) RequiredFiles(d convert.Data) ([]string, error) {
	gd, err := gpt4allData(d)
	if err != nil {
		return nil, err
	}
	return []string{gd.ModelPath, gd.TokenizerPath}, nil
}

func (gpt4allDescriptor) Check(d convert.Data, _ []types.FileProbe) error {
	gd, err := gpt4allData(d)
	if err != nil {
		return err
	}

	info, err := os.Stat(gd.ModelPath)
	if err != nil || info.IsDir() {
		return &types.ValidationError{
			Family: types.FamilyGPT4All,
			Kind:   types.ValidationInvalidPath,
			Path:   gd.ModelPath,
			Detail: "model path must be a regular file",
		}
	}

	magic, err := readMagic(gd.ModelPath)
	if err != nil {
		return &types.ValidationError{
			Family: types.FamilyGPT4All,
			Kind:   types.ValidationMalformedMetadata,
			Path:   gd.ModelPath,
			Detail: err.Error(),
		}
	}
	switch magic {
	case magicGGML:
		return nil
	case magicGGMF, magicGGJT:
		return &types.ValidationError{
			Family: types.FamilyGPT4All,
			Kind:   types.ValidationUnsupportedVersion,
			Path:   gd.ModelPath,
			Detail: "model is already in a versioned container",
		}
	default:
		return &types.ValidationError{
			Family: types.FamilyGPT4All,
			Kind:   types.ValidationMalformedMetadata,
			Path:   gd.ModelPath,
			Detail: fmt.Sprintf("unrecognized magic 0x%08x", magic),
		}
	}
}

func (gpt4allDescriptor) Plan(v convert.Validated, env convert.Env) ([]convert.PlannedStep, error) {
	gd, err := gpt4allData(v.Data())
	if err != nil {
		return nil, err
	}

	return []convert.PlannedStep{
		{
			ID:   types.StepCheckEnvironment,
			Argv: []string{env.PythonPath, "-c", "import json, struct, numpy, sentencepiece"},
		},
		{
			ID:   types.StepConvert,
			Argv: []string{env.PythonPath, env.GPT4AllScript, gd.ModelPath, gd.TokenizerPath, migratedPath(gd.ModelPath)},
		},
	}, nil
}

func (gpt4allDescriptor) Result(v convert.Validated, _ convert.Env) *types.Result {
	gd, err := gpt4allData(v.Data())
	if err != nil {
		return &types.Result{}
	}
	return &types.Result{ModelPath: migratedPath(gd.ModelPath)}
}

func gpt4allData(d convert.Data) (*GPT4AllData, error) {
	gd, ok := d.(*GPT4AllData)
	if !ok {
		return nil, fmt.Errorf("gpt4all descriptor received %T", d)
	}
	return gd, nil
}
