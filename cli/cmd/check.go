package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pyrite-io/smelt/cli/render"
	"github.com/pyrite-io/smelt/types"
)

// CheckCommand returns the check command: the validation gate without
// the pipeline. Renders the required-file checklist and exits non-zero
// when the checkpoint would be rejected.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate a model checkpoint without converting it",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "family",
				Usage:    "Model family: llama, gpt4all, ggml",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "model",
				Usage:    "Path to the model checkpoint",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "tokenizer",
				Usage: "Path to the tokenizer file (gpt4all only)",
			},
		}, ReadOnlyFlags()...),
		Action: checkAction,
	}
}

// CheckResponse is the rendered result of a validation check.
type CheckResponse struct {
	Family string     `json:"family"`
	Valid  bool       `json:"valid"`
	Error  string     `json:"error,omitempty"`
	Probes []ProbeRow `json:"probes"`
}

func checkAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	fam := types.Family(c.String("family"))
	_, _, probes, verr := validateModel(fam, c.String("model"), c.String("tokenizer"))

	resp := CheckResponse{
		Family: string(fam),
		Valid:  verr == nil,
		Probes: probeRows(probes),
	}
	if verr != nil {
		resp.Error = verr.Error()
	}

	if err := r.Render(resp); err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	if verr != nil {
		return cli.Exit(fmt.Sprintf("validation failed: %v", verr), exitValidationFailure)
	}
	return nil
}
