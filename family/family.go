// Package family defines the per-family conversion descriptors.
//
// Each supported model family binds its required-files declaration, its
// validation rules, its fixed step catalogue, and its pipeline planning
// into a convert.Descriptor. There is no shared default implementation;
// validation rules and step sequences are genuinely family-specific. The
// descriptors exist so calling code can treat every family uniformly:
// validate, then build a pipeline, then run.
package family

import (
	"fmt"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

var descriptors = map[types.Family]convert.Descriptor{
	types.FamilyLlama:   llamaDescriptor{},
	types.FamilyGPT4All: gpt4allDescriptor{},
	types.FamilyGGML:    ggmlDescriptor{},
}

// For returns the descriptor for f.
func For(f types.Family) (convert.Descriptor, bool) {
	desc, ok := descriptors[f]
	return desc, ok
}

// All returns every registered descriptor in stable family order.
func All() []convert.Descriptor {
	families := types.Families()
	all := make([]convert.Descriptor, 0, len(families))
	for _, f := range families {
		all = append(all, descriptors[f])
	}
	return all
}

// DataFor builds the raw conversion data for a family from CLI-level
// inputs. tokenizerPath is required only by families that do not derive
// the tokenizer location from the model path.
func DataFor(f types.Family, modelPath, tokenizerPath string) (convert.Data, error) {
	switch f {
	case types.FamilyLlama:
		return &LlamaData{ModelDir: modelPath}, nil
	case types.FamilyGPT4All:
		if tokenizerPath == "" {
			return nil, fmt.Errorf("family %s requires a tokenizer path", f)
		}
		return &GPT4AllData{ModelPath: modelPath, TokenizerPath: tokenizerPath}, nil
	case types.FamilyGGML:
		return &GGMLData{ModelPath: modelPath}, nil
	default:
		return nil, fmt.Errorf("unsupported family: %s", f)
	}
}
