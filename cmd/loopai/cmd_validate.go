package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loopai/internal/model"
)

var validateFlags struct {
	taskID    string
	itemsPath string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a batch of actual vs expected outputs",
	Long: "Validate scores an ordered batch of validation items and prints the\n" +
		"aggregated report. Item order in the report matches the input file.",
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.taskID, "task-id", "", "Task the batch belongs to (required)")
	f.StringVar(&validateFlags.itemsPath, "items", "", "Path to JSON array of validation items (required)")

	_ = validateCmd.MarkFlagRequired("task-id")
	_ = validateCmd.MarkFlagRequired("items")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, _, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	data, err := os.ReadFile(validateFlags.itemsPath)
	if err != nil {
		return fmt.Errorf("read items: %w", err)
	}
	var items []model.ValidationItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse items %s: %w", validateFlags.itemsPath, err)
	}

	report := rt.ValidateBatch(cmd.Context(), validateFlags.taskID, items)
	return printJSON(report)
}
