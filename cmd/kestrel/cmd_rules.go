package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var rulesFlags struct {
	category  string
	rulesFile string
	markdown  bool
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule catalog",
	RunE:  runRules,
}

func init() {
	f := rulesCmd.Flags()
	f.StringVar(&rulesFlags.category, "category", "", "Only list rules of this category")
	f.StringVar(&rulesFlags.rulesFile, "rules", "", "YAML file of CEL rule definitions to add to the catalog")
	f.BoolVar(&rulesFlags.markdown, "markdown", false, "Render as a Markdown table")
}

func runRules(cmd *cobra.Command, _ []string) error {
	var defs []*domain.RuleDefinition
	if rulesFlags.rulesFile != "" {
		var err error
		defs, err = rules.LoadDefinitionsFile(rulesFlags.rulesFile)
		if err != nil {
			return err
		}
	}

	catalog, err := rules.LoadCatalog(rules.DefaultSpec(), defs)
	if err != nil {
		return err
	}

	list := catalog.All()
	if rulesFlags.category != "" {
		cat := domain.Category(rulesFlags.category)
		if !cat.Valid() {
			return fmt.Errorf("unknown category %q", rulesFlags.category)
		}
		list = catalog.RulesFor(cat)
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Category", "Severity", "Impact", "Name", "Source"})
	for _, r := range list {
		t.AppendRow(table.Row{r.ID, r.Category, r.Severity, fmt.Sprintf("%+d", r.Impact), r.Name, r.Source})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d rules", len(list)), catalog.Version()})

	out := cmd.OutOrStdout()
	if rulesFlags.markdown {
		fmt.Fprintln(out, t.RenderMarkdown())
		return nil
	}
	t.SetStyle(table.StyleLight)
	fmt.Fprintln(out, t.Render())
	return nil
}
