package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seanpoyner/ollama-code/internal/config"
	"github.com/seanpoyner/ollama-code/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show the task batch in this directory",
	Long:  `Tasks lists the current batch with per-task status, retries and results.`,
	RunE:  runTasks,
}

var tasksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the task batch in this directory",
	RunE:  runTasksClear,
}

func init() {
	tasksCmd.AddCommand(tasksClearCmd)
}

func openStore() (*task.Store, error) {
	dir, err := workDir()
	if err != nil {
		return nil, err
	}
	store := task.NewStore(filepath.Join(dir, config.MetaDir))
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load task batch: %w", err)
	}
	return store, nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		fmt.Println("No task batch in this directory.")
		return nil
	}

	fmt.Printf("Request: %s\n\n", store.Request())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tPRIORITY\tRETRIES\tTASK")
	for i, t := range store.Tasks() {
		status := string(t.Status)
		if t.Abandoned {
			status = "abandoned"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", i+1, status, t.Priority, t.RetryCount, firstLine(t.Content))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !store.AllTerminal() {
		fmt.Println("\nUnfinished batch. Resume with `ollama-code run --resume` or discard with `ollama-code tasks clear`.")
	}
	return nil
}

func runTasksClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		fmt.Println("No task batch to clear.")
		return nil
	}
	n := store.Len()
	// An unfinished batch is cancelled first; Clear refuses non-terminal
	// tasks.
	if !store.AllTerminal() {
		if err := store.CancelAll(); err != nil {
			return fmt.Errorf("failed to cancel task batch: %w", err)
		}
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear task batch: %w", err)
	}
	fmt.Printf("Cleared %d task(s).\n", n)
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
