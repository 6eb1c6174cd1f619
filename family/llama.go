package family

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

// LlamaData describes a raw PyTorch checkpoint directory, e.g. /models/7B.
// The directory holds params.json and consolidated.NN.pth shards; the
// tokenizer.model sits in the parent directory, shared across sizes.
type LlamaData struct {
	ModelDir string
}

// Family implements convert.Data.
func (d *LlamaData) Family() types.Family { return types.FamilyLlama }

// SourcePath implements convert.Data.
func (d *LlamaData) SourcePath() string { return d.ModelDir }

// llamaParams is the subset of params.json the pipeline needs.
type llamaParams struct {
	Dim     int `json:"dim"`
	NHeads  int `json:"n_heads"`
	NLayers int `json:"n_layers"`
}

// shardCountForDim maps the embedding dimension to the checkpoint shard
// count, following the upstream size table (7B through 65B).
func shardCountForDim(dim int) (int, bool) {
	switch dim {
	case 4096:
		return 1, true
	case 5120:
		return 2, true
	case 6656:
		return 4, true
	case 8192:
		return 8, true
	default:
		return 0, false
	}
}

type llamaDescriptor struct{}

func (llamaDescriptor) Family() types.Family { return types.FamilyLlama }

func (llamaDescriptor) Steps() []types.StepID {
	return []types.StepID{types.StepCheckEnvironment, types.StepConvert, types.StepQuantize}
}

// RequiredFiles lists params.json, the shared tokenizer.model, and the
// checkpoint shards. Shard paths are derived from params.json when it is
// readable; when it is not, only the base files are listed and the gate
// fails on the params.json probe (or the metadata check) instead.
func (llamaDescriptor) RequiredFiles(d convert.Data) ([]string, error) {
	ld, err := llamaData(d)
	if err != nil {
		return nil, err
	}

	paramsPath := filepath.Join(ld.ModelDir, "params.json")
	tokenizerPath := filepath.Join(filepath.Dir(ld.ModelDir), "tokenizer.model")
	files := []string{paramsPath, tokenizerPath}

	params, err := readLlamaParams(paramsPath)
	if err != nil {
		return files, nil
	}
	shards, ok := shardCountForDim(params.Dim)
	if !ok {
		return files, nil
	}
	for i := range shards {
		files = append(files, filepath.Join(ld.ModelDir, fmt.Sprintf("consolidated.%02d.pth", i)))
	}
	return files, nil
}

func (llamaDescriptor) Check(d convert.Data, _ []types.FileProbe) error {
	ld, err := llamaData(d)
	if err != nil {
		return err
	}

	info, err := os.Stat(ld.ModelDir)
	if err != nil || !info.IsDir() {
		return &types.ValidationError{
			Family: types.FamilyLlama,
			Kind:   types.ValidationInvalidPath,
			Path:   ld.ModelDir,
			Detail: "model path must be a checkpoint directory",
		}
	}

	paramsPath := filepath.Join(ld.ModelDir, "params.json")
	params, err := readLlamaParams(paramsPath)
	if err != nil {
		return &types.ValidationError{
			Family: types.FamilyLlama,
			Kind:   types.ValidationMalformedMetadata,
			Path:   paramsPath,
			Detail: err.Error(),
		}
	}
	if params.Dim <= 0 || params.NHeads <= 0 || params.NLayers <= 0 {
		return &types.ValidationError{
			Family: types.FamilyLlama,
			Kind:   types.ValidationMalformedMetadata,
			Path:   paramsPath,
			Detail: "dim, n_heads and n_layers must be positive",
		}
	}
	if _, ok := shardCountForDim(params.Dim); !ok {
		return &types.ValidationError{
			Family: types.FamilyLlama,
			Kind:   types.ValidationUnsupportedVersion,
			Path:   paramsPath,
			Detail: fmt.Sprintf("unrecognized model dimension %d", params.Dim),
		}
	}
	return nil
}

func (llamaDescriptor) Plan(v convert.Validated, env convert.Env) ([]convert.PlannedStep, error) {
	ld, err := llamaData(v.Data())
	if err != nil {
		return nil, err
	}

	f16Path := filepath.Join(ld.ModelDir, "ggml-model-f16.bin")
	q4Path := filepath.Join(ld.ModelDir, "ggml-model-q4_0.bin")

	return []convert.PlannedStep{
		{
			ID:   types.StepCheckEnvironment,
			Argv: []string{env.PythonPath, "-c", "import json, struct, numpy, torch, sentencepiece"},
		},
		{
			ID:   types.StepConvert,
			Argv: []string{env.PythonPath, env.PthScript, ld.ModelDir, "1"},
		},
		{
			ID:   types.StepQuantize,
			Argv: []string{env.QuantizeBin, f16Path, q4Path, "2", strconv.Itoa(env.Threads)},
		},
	}, nil
}

func (llamaDescriptor) Result(v convert.Validated, _ convert.Env) *types.Result {
	ld, err := llamaData(v.Data())
	if err != nil {
		return &types.Result{}
	}
	return &types.Result{
		ModelPath: filepath.Join(ld.ModelDir, "ggml-model-q4_0.bin"),
		Artifacts: []string{filepath.Join(ld.ModelDir, "ggml-model-f16.bin")},
	}
}

func llamaData(d convert.Data) (*LlamaData, error) {
	ld, ok := d.(*LlamaData)
	if !ok {
		return nil, fmt.Errorf("llama descriptor received %T", d)
	}
	return ld, nil
}

func readLlamaParams(path string) (*llamaParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var params llamaParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid params.json: %w", err)
	}
	return &params, nil
}
