package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/spf13/cobra"
)

var (
	recDescription string
	recSteps       []string
	recAll         bool
	recOverrides   []string
	recForce       bool
	recWithOptions bool
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Manage saved cleaning recipes",
}

var recipeInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Save a named step selection and column overrides",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		name := args[0]
		if _, err := recipe.Load(c.RecipesDir, name); err == nil && !recForce {
			return fmt.Errorf("recipe %q already exists (use --force to replace it)", name)
		} else if err != nil && !errors.Is(err, recipe.ErrNotFound) {
			return err
		}
		sel := clean.SelectAll()
		if !recAll {
			if sel, err = clean.ParseSelection(recSteps); err != nil {
				return err
			}
		}
		ov, err := clean.ParseOverrides(recOverrides)
		if err != nil {
			return err
		}
		r, err := recipe.New(name, recDescription, sel, ov)
		if err != nil {
			return err
		}
		if recWithOptions {
			opts := c.CleanOptions()
			r.Options = &opts
		}
		if err := r.Save(c.RecipesDir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Recipe saved: %s\n", filepath.Join(c.RecipesDir, name+".json"))
		return nil
	},
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recipes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		recipes, errs := recipe.List(c.RecipesDir)
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "⚠ Skipping recipe: %v\n", e)
		}
		out := cmd.OutOrStdout()
		if len(recipes) == 0 {
			fmt.Fprintln(out, "No recipes found")
			return nil
		}
		for _, r := range recipes {
			line := fmt.Sprintf("- %s  steps=%s", r.Name, r.Steps)
			if r.Description != "" {
				line += "  " + r.Description
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a recipe as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		r, err := recipe.Load(c.RecipesDir, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	},
}

var recipeDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := recipe.Delete(c.RecipesDir, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Recipe deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recipeCmd)
	recipeCmd.AddCommand(recipeInitCmd, recipeListCmd, recipeShowCmd, recipeDeleteCmd)
	recipeInitCmd.Flags().StringVarP(&recDescription, "desc", "d", "", "recipe description")
	recipeInitCmd.Flags().StringSliceVarP(&recSteps, "steps", "s", nil, "comma-separated steps to run")
	recipeInitCmd.Flags().BoolVar(&recAll, "all", false, "enable every step")
	recipeInitCmd.Flags().StringArrayVarP(&recOverrides, "override", "o", nil, "column type override column=type (repeatable)")
	recipeInitCmd.Flags().BoolVar(&recForce, "force", false, "replace an existing recipe")
	recipeInitCmd.Flags().BoolVar(&recWithOptions, "with-options", false, "store the current heuristics in the recipe")
}
