package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitesmith-tech/sitesmith/internal/siteconfig"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve [intent-file]",
	Short: "Resolve a site intent without provisioning",
	Long: `Resolve a site intent into its template, feature set, and
environment variables without touching any provider.

The intent is read from the given JSON file, or from stdin when no
file is given. Useful for previewing what a provisioning run would
configure.

Examples:
  sitesmith resolve intent.json
  cat intent.json | sitesmith resolve
  sitesmith resolve intent.json --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "output the resolved configuration as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open intent file: %w", err)
		}
		defer file.Close()
		reader = file
	}

	var intent siteconfig.SiteIntent
	if err := json.NewDecoder(reader).Decode(&intent); err != nil {
		return fmt.Errorf("failed to decode intent: %w", err)
	}

	resolved := siteconfig.Resolve(&intent)

	if resolveJSON {
		out, err := json.MarshalIndent(resolved, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode resolved config: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(styles.Title.Render("Resolved Site Configuration"))
	fmt.Println()
	fmt.Printf("  Template:  %s\n", resolved.TemplateID)
	fmt.Println()

	printInfo("Enabled features:")
	for _, f := range resolved.EnabledFeatures {
		fmt.Printf("    %s\n", f)
	}
	if len(resolved.DisabledFeatures) > 0 {
		fmt.Println()
		fmt.Println(styles.Subtle.Render("  Disabled features:"))
		for _, f := range resolved.DisabledFeatures {
			fmt.Println(styles.Subtle.Render("    " + string(f)))
		}
	}

	if len(resolved.EnvironmentVariables) > 0 {
		fmt.Println()
		printInfo("Environment variables:")
		for k, v := range resolved.EnvironmentVariables {
			fmt.Printf("    %s=%s\n", k, v)
		}
	}

	fmt.Println()
	printSuccess(resolved.Summary)
	return nil
}
