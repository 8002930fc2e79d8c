package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carqa/carqa/internal/qa"
)

var askFilters []string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed reviews",
	Long: `Ask a question and get an answer grounded in the indexed reviews.

Examples:
  carqa ask "is the suspension too firm for daily driving?"
  carqa ask --filter make=tesla --filter model="model 3" "how far does it go in winter?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVar(&askFilters, "filter", nil, "metadata filter as key=value (repeatable)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	filter, err := parseFilters(askFilters)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	answerer, err := qa.NewService(a.config.QA, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("initializing q&a service: %w", err)
	}

	question := strings.Join(args, " ")
	answer, err := answerer.Answer(cmd.Context(), question, filter, "")
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	fmt.Println(answer)
	return nil
}
