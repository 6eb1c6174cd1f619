package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pyrite-io/smelt/cli/render"
	"github.com/pyrite-io/smelt/family"
)

// FamilyRow describes one supported model family.
type FamilyRow struct {
	Family string   `json:"family"`
	Steps  []string `json:"steps"`
}

// FamiliesCommand returns the families command, listing every supported
// family with its step catalogue in declaration order.
func FamiliesCommand() *cli.Command {
	return &cli.Command{
		Name:   "families",
		Usage:  "List supported model families and their pipeline steps",
		Flags:  ReadOnlyFlags(),
		Action: familiesAction,
	}
}

func familiesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	descriptors := family.All()
	rows := make([]FamilyRow, 0, len(descriptors))
	for _, desc := range descriptors {
		steps := desc.Steps()
		names := make([]string, 0, len(steps))
		for _, s := range steps {
			names = append(names, string(s))
		}
		rows = append(rows, FamilyRow{Family: string(desc.Family()), Steps: names})
	}

	return r.Render(rows)
}
