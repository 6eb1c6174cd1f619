// Package types defines core domain types for the smelt conversion pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

// Family identifies a supported model family. Each family has its own
// validation rules and conversion step catalogue.
type Family string

const (
	// FamilyLlama is a raw PyTorch checkpoint directory (params.json,
	// tokenizer.model, consolidated.NN.pth shards).
	FamilyLlama Family = "llama"
	// FamilyGPT4All is a single unversioned ggml .bin plus a tokenizer model.
	FamilyGPT4All Family = "gpt4all"
	// FamilyGGML is an already-converted ggml file in an older container
	// version that needs migration.
	FamilyGGML Family = "ggml"
)

// Families returns all supported families in stable order.
func Families() []Family {
	return []Family{FamilyLlama, FamilyGPT4All, FamilyGGML}
}

// Known reports whether f is a supported family.
func (f Family) Known() bool {
	switch f {
	case FamilyLlama, FamilyGPT4All, FamilyGGML:
		return true
	default:
		return false
	}
}
