package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/translate"
	"github.com/caosd-group/kubefm/internal/validate"
)

var translateCmd = &cobra.Command{
	Use:   "translate <document>",
	Short: "Translate one document into a feature selection and validate it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fm, mp, err := loadModelAndMapping(cfg)
		if err != nil {
			return err
		}

		bs, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		sel, err := translate.New(fm, mp).WithLogger(log).Document(cmd.Context(), bs)
		if err != nil {
			return err
		}

		for _, id := range sel.Selected {
			if v, ok := sel.Values[id]; ok {
				fmt.Printf("%s = %s\n", id, v)
			} else {
				fmt.Println(id)
			}
		}
		for _, path := range sel.Unmapped {
			fmt.Printf("unmapped: %s\n", path)
		}

		report := validate.New(fm).Validate(sel)
		if report.Valid {
			fmt.Println("valid")
			return nil
		}
		for _, v := range report.Violations {
			fmt.Printf("violation: %s\n", v)
		}
		return fmt.Errorf("%d violations", len(report.Violations))
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)
}
