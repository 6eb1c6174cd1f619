package types

// StepID identifies one ordered unit of work in a family's conversion
// catalogue. Catalogue order is fixed per family and matches execution order.
type StepID string

// Well-known step identifiers. Not every family uses every step.
const (
	// StepCheckEnvironment verifies the converter toolchain is usable.
	StepCheckEnvironment StepID = "check-environment"
	// StepConvert converts the source model into a ggml f16 file.
	StepConvert StepID = "convert"
	// StepQuantize quantizes a ggml f16 file down to 4-bit weights.
	StepQuantize StepID = "quantize"
	// StepMigrate upgrades an older ggml container to the current version.
	StepMigrate StepID = "migrate"
)
