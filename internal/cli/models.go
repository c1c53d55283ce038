package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/seanpoyner/ollama-code/internal/ollama"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed on the Ollama server",
	RunE:  runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	dir, err := workDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	client := ollama.NewClient(cfg.Host, cfg.Model)
	models, err := client.Tags(cmd.Context())
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Printf("No models installed at %s. Pull one with `ollama pull %s`.\n", cfg.Host, cfg.Model)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
	for _, m := range models {
		marker := ""
		if m.Name == cfg.Model {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\n", m.Name, marker,
			humanize.Bytes(uint64(m.Size)), humanize.Time(m.ModifiedAt))
	}
	return w.Flush()
}
