package family

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeMagicFile writes a file whose first four bytes are the given magic.
func writeMagicFile(t *testing.T, path string, magic uint32) {
	t.Helper()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, magic)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

// llamaCheckpointFixture lays out a complete 7B checkpoint directory.
func llamaCheckpointFixture(t *testing.T) *LlamaData {
	t.Helper()
	root := t.TempDir()
	modelDir := filepath.Join(root, "7B")
	if err := os.Mkdir(modelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(modelDir, "params.json"),
		`{"dim": 4096, "multiple_of": 256, "n_heads": 32, "n_layers": 32, "norm_eps": 1e-06, "vocab_size": -1}`)
	writeFile(t, filepath.Join(root, "tokenizer.model"), "spm")
	writeFile(t, filepath.Join(modelDir, "consolidated.00.pth"), "weights")
	return &LlamaData{ModelDir: modelDir}
}

func TestDescriptorsRegistered(t *testing.T) {
	for _, f := range types.Families() {
		desc, ok := For(f)
		if !ok {
			t.Fatalf("no descriptor registered for %s", f)
		}
		if desc.Family() != f {
			t.Errorf("descriptor family = %s, want %s", desc.Family(), f)
		}
		if len(desc.Steps()) == 0 {
			t.Errorf("%s catalogue is empty", f)
		}
	}

	if len(All()) != len(types.Families()) {
		t.Errorf("All() returned %d descriptors, want %d", len(All()), len(types.Families()))
	}
}

func TestCataloguesAreStable(t *testing.T) {
	tests := []struct {
		family types.Family
		want   []types.StepID
	}{
		{types.FamilyLlama, []types.StepID{types.StepCheckEnvironment, types.StepConvert, types.StepQuantize}},
		{types.FamilyGPT4All, []types.StepID{types.StepCheckEnvironment, types.StepConvert}},
		{types.FamilyGGML, []types.StepID{types.StepMigrate}},
	}

	for _, tt := range tests {
		desc, _ := For(tt.family)
		got := desc.Steps()
		if len(got) != len(tt.want) {
			t.Fatalf("%s catalogue length = %d, want %d", tt.family, len(got), len(tt.want))
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("%s step %d = %s, want %s", tt.family, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLlamaValidateCompleteCheckpoint(t *testing.T) {
	data := llamaCheckpointFixture(t)
	desc, _ := For(types.FamilyLlama)

	var probes []types.FileProbe
	v, err := convert.Validate(desc, data, &probes)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if v.Data() != convert.Data(data) {
		t.Error("Validated does not wrap the original data")
	}

	// params.json + tokenizer.model + one 7B shard.
	if len(probes) != 3 {
		t.Errorf("got %d probes, want 3: %+v", len(probes), probes)
	}
	for _, p := range probes {
		if !p.Found {
			t.Errorf("probe %s reported missing in a complete checkpoint", p.Path)
		}
	}
}

func TestLlamaValidateMissingShard(t *testing.T) {
	data := llamaCheckpointFixture(t)
	if err := os.Remove(filepath.Join(data.ModelDir, "consolidated.00.pth")); err != nil {
		t.Fatal(err)
	}
	desc, _ := For(types.FamilyLlama)

	_, err := convert.Validate(desc, data, nil)
	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationMissingFile {
		t.Errorf("Kind = %s, want missing_file", verr.Kind)
	}
}

func TestLlamaValidateMalformedParams(t *testing.T) {
	data := llamaCheckpointFixture(t)
	writeFile(t, filepath.Join(data.ModelDir, "params.json"), "{not json")
	desc, _ := For(types.FamilyLlama)

	_, err := convert.Validate(desc, data, nil)
	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationMalformedMetadata {
		t.Errorf("Kind = %s, want malformed_metadata", verr.Kind)
	}
}

func TestLlamaValidateUnknownDimension(t *testing.T) {
	data := llamaCheckpointFixture(t)
	writeFile(t, filepath.Join(data.ModelDir, "params.json"),
		`{"dim": 999, "n_heads": 32, "n_layers": 32}`)
	desc, _ := For(types.FamilyLlama)

	_, err := convert.Validate(desc, data, nil)
	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationUnsupportedVersion {
		t.Errorf("Kind = %s, want unsupported_version", verr.Kind)
	}
}

func TestLlamaShardCounts(t *testing.T) {
	tests := []struct {
		dim   int
		want  int
		known bool
	}{
		{4096, 1, true},
		{5120, 2, true},
		{6656, 4, true},
		{8192, 8, true},
		{1234, 0, false},
	}
	for _, tt := range tests {
		got, ok := shardCountForDim(tt.dim)
		if got != tt.want || ok != tt.known {
			t.Errorf("shardCountForDim(%d) = (%d, %v), want (%d, %v)", tt.dim, got, ok, tt.want, tt.known)
		}
	}
}

func TestLlamaPlanMatchesCatalogue(t *testing.T) {
	data := llamaCheckpointFixture(t)
	desc, _ := For(types.FamilyLlama)

	v, err := convert.Validate(desc, data, nil)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	env := convert.Env{
		PythonPath:  "/usr/bin/python3",
		PthScript:   "/opt/smelt/convert_pth_to_ggml.py",
		QuantizeBin: "/opt/smelt/quantize",
		Threads:     8,
	}
	steps, err := desc.Plan(v, env)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	catalogue := desc.Steps()
	if len(steps) != len(catalogue) {
		t.Fatalf("plan has %d steps, catalogue %d", len(steps), len(catalogue))
	}
	for i := range steps {
		if steps[i].ID != catalogue[i] {
			t.Errorf("plan step %d = %s, want %s", i, steps[i].ID, catalogue[i])
		}
		if len(steps[i].Argv) == 0 {
			t.Errorf("plan step %s has empty argv", steps[i].ID)
		}
	}

	// The convert step invokes the converter script on the checkpoint dir.
	if steps[1].Argv[1] != env.PthScript || steps[1].Argv[2] != data.ModelDir {
		t.Errorf("convert argv = %v", steps[1].Argv)
	}
}

func TestGPT4AllValidate(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "gpt4all-lora-quantized.bin")
	tok := filepath.Join(dir, "tokenizer.model")
	writeMagicFile(t, model, magicGGML)
	writeFile(t, tok, "spm")

	desc, _ := For(types.FamilyGPT4All)
	data := &GPT4AllData{ModelPath: model, TokenizerPath: tok}

	if _, err := convert.Validate(desc, data, nil); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

func TestGPT4AllValidateAlreadyVersioned(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.bin")
	tok := filepath.Join(dir, "tokenizer.model")
	writeMagicFile(t, model, magicGGJT)
	writeFile(t, tok, "spm")

	desc, _ := For(types.FamilyGPT4All)
	data := &GPT4AllData{ModelPath: model, TokenizerPath: tok}

	_, err := convert.Validate(desc, data, nil)
	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationUnsupportedVersion {
		t.Errorf("Kind = %s, want unsupported_version", verr.Kind)
	}
}

func TestGGMLValidateSoleMissingFile(t *testing.T) {
	desc, _ := For(types.FamilyGGML)
	data := &GGMLData{ModelPath: filepath.Join(t.TempDir(), "absent.bin")}

	var probes []types.FileProbe
	_, err := convert.Validate(desc, data, &probes)
	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationMissingFile {
		t.Errorf("Kind = %s, want missing_file", verr.Kind)
	}
	if len(probes) != 1 || probes[0].Found {
		t.Errorf("probes = %+v, want one missing probe", probes)
	}
}

func TestGGMLValidateMagics(t *testing.T) {
	tests := []struct {
		name     string
		magic    uint32
		wantKind types.ValidationKind // empty means valid
	}{
		{"unversioned migrates", magicGGML, ""},
		{"versioned migrates", magicGGMF, ""},
		{"current is rejected", magicGGJT, types.ValidationUnsupportedVersion},
		{"garbage is rejected", 0xdeadbeef, types.ValidationMalformedMetadata},
	}

	desc, _ := For(types.FamilyGGML)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := filepath.Join(t.TempDir(), "model.bin")
			writeMagicFile(t, model, tt.magic)
			data := &GGMLData{ModelPath: model}

			_, err := convert.Validate(desc, data, nil)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}
			verr, ok := types.AsValidation(err)
			if !ok {
				t.Fatalf("error is not a ValidationError: %v", err)
			}
			if verr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", verr.Kind, tt.wantKind)
			}
		})
	}
}

func TestGGMLPlanUsesMigrateTool(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.bin")
	writeMagicFile(t, model, magicGGMF)

	desc, _ := For(types.FamilyGGML)
	data := &GGMLData{ModelPath: model}

	v, err := convert.Validate(desc, data, nil)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	steps, err := desc.Plan(v, convert.Env{MigrateBin: "/opt/smelt/migrate-ggml"})
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}
	if len(steps) != 1 || steps[0].ID != types.StepMigrate {
		t.Fatalf("plan = %+v, want single migrate step", steps)
	}
	if steps[0].Argv[0] != "/opt/smelt/migrate-ggml" {
		t.Errorf("migrate argv = %v", steps[0].Argv)
	}

	res := desc.Result(v, convert.Env{})
	if res.ModelPath != migratedPath(model) {
		t.Errorf("Result ModelPath = %s, want %s", res.ModelPath, migratedPath(model))
	}
}

func TestMigratedPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/m/model.bin", "/m/model-ggjt.bin"},
		{"/m/model", "/m/model-ggjt.bin"},
	}
	for _, tt := range tests {
		if got := migratedPath(tt.in); got != tt.want {
			t.Errorf("migratedPath(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDataFor(t *testing.T) {
	if _, err := DataFor(types.FamilyGPT4All, "/m.bin", ""); err == nil {
		t.Error("DataFor(gpt4all) accepted empty tokenizer path")
	}
	if _, err := DataFor(types.Family("mystery"), "/m.bin", ""); err == nil {
		t.Error("DataFor accepted unknown family")
	}

	d, err := DataFor(types.FamilyLlama, "/models/7B", "")
	if err != nil {
		t.Fatalf("DataFor(llama) failed: %v", err)
	}
	if d.Family() != types.FamilyLlama || d.SourcePath() != "/models/7B" {
		t.Errorf("DataFor(llama) = %+v", d)
	}
}
