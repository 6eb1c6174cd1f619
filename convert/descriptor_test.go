package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pyrite-io/smelt/types"
)

func TestValidateMissingFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "params.json")

	desc := &fakeDescriptor{
		family:   types.FamilyLlama,
		required: []string{missing},
		steps:    []types.StepID{types.StepConvert},
	}
	data := &fakeData{family: types.FamilyLlama, source: dir}

	_, err := Validate(desc, data, nil)
	if err == nil {
		t.Fatal("Validate() succeeded with missing required file")
	}

	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationMissingFile {
		t.Errorf("Kind = %s, want missing_file", verr.Kind)
	}
	if verr.Path != missing {
		t.Errorf("Path = %s, want %s", verr.Path, missing)
	}
}

func TestValidateProbesMatchRequiredFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	absent := filepath.Join(dir, "tokenizer.model")

	desc := &fakeDescriptor{
		family:   types.FamilyGPT4All,
		required: []string{present, absent},
		steps:    []types.StepID{types.StepConvert},
	}
	data := &fakeData{family: types.FamilyGPT4All, source: present}

	var probes []types.FileProbe
	_, err := Validate(desc, data, &probes)
	if err == nil {
		t.Fatal("Validate() succeeded with a missing file")
	}

	// The probe list covers exactly the declared required files, and the
	// missing set matches what validation failed on.
	if len(probes) != 2 {
		t.Fatalf("got %d probes, want 2", len(probes))
	}
	if probes[0].Path != present || !probes[0].Found {
		t.Errorf("probe 0 = %+v, want found %s", probes[0], present)
	}
	if probes[1].Path != absent || probes[1].Found {
		t.Errorf("probe 1 = %+v, want missing %s", probes[1], absent)
	}

	verr, _ := types.AsValidation(err)
	missing := types.MissingPaths(probes)
	if len(missing) != 1 || missing[0] != verr.Path {
		t.Errorf("missing probes %v disagree with validation failure path %s", missing, verr.Path)
	}
}

func TestValidateDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	desc := &fakeDescriptor{
		family:   types.FamilyGGML,
		required: []string{path},
		steps:    []types.StepID{types.StepMigrate},
	}
	data := &fakeData{family: types.FamilyGGML, source: path}

	for range 3 {
		if _, err := Validate(desc, data, nil); err != nil {
			t.Fatalf("Validate() not deterministic, got error: %v", err)
		}
	}
}

func TestValidateFamilyMismatch(t *testing.T) {
	desc := &fakeDescriptor{
		family: types.FamilyLlama,
		steps:  []types.StepID{types.StepConvert},
	}
	data := &fakeData{family: types.FamilyGGML, source: "/m.bin"}

	if _, err := Validate(desc, data, nil); err == nil {
		t.Error("Validate() accepted data from a different family")
	}
}

func TestValidateCheckErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	desc := &fakeDescriptor{
		family:   types.FamilyGGML,
		required: []string{path},
		steps:    []types.StepID{types.StepMigrate},
		checkErr: &types.ValidationError{
			Family: types.FamilyGGML,
			Kind:   types.ValidationUnsupportedVersion,
			Path:   path,
		},
	}
	data := &fakeData{family: types.FamilyGGML, source: path}

	_, err := Validate(desc, data, nil)
	verr, ok := types.AsValidation(err)
	if !ok {
		t.Fatalf("error is not a ValidationError: %v", err)
	}
	if verr.Kind != types.ValidationUnsupportedVersion {
		t.Errorf("Kind = %s, want unsupported_version", verr.Kind)
	}
}

func TestValidateWrapsOriginalData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	desc := &fakeDescriptor{
		family:   types.FamilyGGML,
		required: []string{path},
		steps:    []types.StepID{types.StepMigrate},
	}
	data := &fakeData{family: types.FamilyGGML, source: path}

	v, err := Validate(desc, data, nil)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if v.Data() != Data(data) {
		t.Error("Validated does not wrap the original data unchanged")
	}
}
