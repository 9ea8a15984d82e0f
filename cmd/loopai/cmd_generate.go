package main

import (
	"github.com/spf13/cobra"
)

var generateFlags struct {
	taskPath    string
	version     int
	constraints string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a program artifact for a task",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.taskPath, "task", "", "Path to task specification JSON (required)")
	f.IntVar(&generateFlags.version, "version", 1, "Artifact version to generate")
	f.StringVar(&generateFlags.constraints, "constraints", "", "Extra synthesis constraints")

	_ = generateCmd.MarkFlagRequired("task")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, _, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	task, err := loadTask(generateFlags.taskPath)
	if err != nil {
		return err
	}
	if generateFlags.constraints != "" {
		task.Constraints = generateFlags.constraints
	}

	artifact, err := rt.Generate(cmd.Context(), task, generateFlags.version)
	if err != nil {
		return err
	}
	return printJSON(artifact)
}
