package main

import (
	"github.com/spf13/cobra"
)

var executeFlags struct {
	taskPath      string
	version       int
	input         string
	expected      string
	correlationID string
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a task's program against one input",
	Long: "Execute runs the full pipeline for one input: generate (or reuse the\n" +
		"cached artifact), execute in the sandbox, and validate when the\n" +
		"execution is sampled and an expected output is available.",
	RunE: runExecute,
}

func init() {
	f := executeCmd.Flags()
	f.StringVar(&executeFlags.taskPath, "task", "", "Path to task specification JSON (required)")
	f.IntVar(&executeFlags.version, "version", 1, "Artifact version to execute")
	f.StringVar(&executeFlags.input, "input", "", "Input document: JSON literal or file path (required)")
	f.StringVar(&executeFlags.expected, "expected", "", "Expected output document: JSON literal or file path")
	f.StringVar(&executeFlags.correlationID, "correlation-id", "", "Caller correlation id attached to the record")

	_ = executeCmd.MarkFlagRequired("task")
	_ = executeCmd.MarkFlagRequired("input")
}

func runExecute(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, _, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	task, err := loadTask(executeFlags.taskPath)
	if err != nil {
		return err
	}
	input, err := loadDocument(executeFlags.input)
	if err != nil {
		return err
	}
	var expected any
	if executeFlags.expected != "" {
		doc, err := loadDocument(executeFlags.expected)
		if err != nil {
			return err
		}
		expected = doc
	}

	result, err := rt.Run(cmd.Context(), task, executeFlags.version, input, expected, executeFlags.correlationID)
	if err != nil {
		return err
	}
	return printJSON(result)
}
