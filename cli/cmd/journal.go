package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pyrite-io/smelt/cli/render"
	"github.com/pyrite-io/smelt/iox"
	"github.com/pyrite-io/smelt/journal"
)

// JournalRow is one journal record in rendered output.
type JournalRow struct {
	ConversionID string `json:"conversion_id"`
	Family       string `json:"family"`
	Kind         string `json:"kind"`
	Step         string `json:"step,omitempty"`
	Ordinal      int    `json:"ordinal"`
	ExitCode     int    `json:"exit_code"`
	Timestamp    string `json:"timestamp"`
}

// JournalCommand returns the journal command, which replays the step
// events recorded by convert --journal.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:      "journal",
		Usage:     "Show recorded step events from a journal file",
		ArgsUsage: "<journal file>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "conversion-id",
				Usage: "Only show records for this conversion",
			},
		}, ReadOnlyFlags()...),
		Action: journalAction,
	}
}

func journalAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: smelt journal <journal file>", exitUsageError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open journal: %v", err), exitUsageError)
	}
	defer iox.DiscardClose(f)

	records, err := journal.ReadAll(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read journal: %v", err), exitUsageError)
	}

	filter := c.String("conversion-id")
	rows := make([]JournalRow, 0, len(records))
	for _, rec := range records {
		if filter != "" && rec.ConversionID != filter {
			continue
		}
		rows = append(rows, JournalRow{
			ConversionID: rec.ConversionID,
			Family:       rec.Family,
			Kind:         rec.Kind,
			Step:         rec.Step,
			Ordinal:      rec.Ordinal,
			ExitCode:     rec.ExitCode,
			Timestamp:    rec.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}

	return r.Render(rows)
}
