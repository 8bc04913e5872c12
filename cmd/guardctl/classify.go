package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillm/action-guard/internal/adapters"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/policy"
	"github.com/kirillm/action-guard/internal/risk"
)

type classifyOptions struct {
	engine      string
	category    string
	actionType  string
	description string
	value       float64
	reversible  bool
	urgency     string
	lines       int
	files       int
	production  bool
	patch       string
	params      []string
}

type classifyOutput struct {
	Action     domain.Action         `json:"action"`
	Assessment domain.RiskAssessment `json:"assessment"`
	Rule       string                `json:"rule"`
}

func classifyCmd() *cobra.Command {
	var opts classifyOptions
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one action and print the risk assessment",
		Example: `  guardctl classify --type market_sell --category trading --value 500
  guardctl classify --engine build --category build --type apply_patch --patch fix.diff`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := policy.LoadOrDefault(viper.GetString("policy"), viper.GetString("profile"))
			if err != nil {
				return err
			}

			action, err := opts.build()
			if err != nil {
				return err
			}

			assessment, rule, err := risk.NewClassifier(policy.Static{P: p}, nil).Explain(action)
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSON(cmd, classifyOutput{Action: action, Assessment: assessment, Rule: rule})
			}
			renderAssessment(cmd.OutOrStdout(), action, assessment, rule)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.engine, "engine", string(domain.EngineOther), "source engine (trading|content|build|workflow|other)")
	f.StringVar(&opts.category, "category", string(domain.CategoryOther), "action category")
	f.StringVar(&opts.actionType, "type", "", "action type, e.g. dca_buy")
	f.StringVar(&opts.description, "description", "", "human readable description (defaults to type)")
	f.Float64Var(&opts.value, "value", 0, "estimated value in USD")
	f.BoolVar(&opts.reversible, "reversible", false, "action can be rolled back")
	f.StringVar(&opts.urgency, "urgency", string(domain.UrgencyNormal), "low|normal|high|critical")
	f.IntVar(&opts.lines, "lines", 0, "lines changed")
	f.IntVar(&opts.files, "files", 0, "files changed")
	f.BoolVar(&opts.production, "production", false, "affects production")
	f.StringVar(&opts.patch, "patch", "", "unified diff; lines and files are derived from it")
	f.StringSliceVar(&opts.params, "param", nil, "action param key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (o classifyOptions) build() (domain.Action, error) {
	factory := domain.NewActionFactory(nil, nil)

	if o.patch != "" {
		data, err := os.ReadFile(o.patch)
		if err != nil {
			return domain.Action{}, fmt.Errorf("read patch: %w", err)
		}
		stats, err := adapters.ParsePatch(data)
		if err != nil {
			return domain.Action{}, err
		}
		o.lines, o.files = stats.Lines(), len(stats.Files)
	}

	description := o.description
	if description == "" {
		description = o.actionType
	}

	b := factory.New(domain.Engine(o.engine), domain.Category(o.category), o.actionType).
		Description(description).
		Value(o.value).
		Reversible(o.reversible).
		Urgency(domain.Urgency(o.urgency)).
		Changes(o.lines, o.files).
		AffectsProduction(o.production)

	for _, kv := range o.params {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return domain.Action{}, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		b = b.Param(key, value)
	}
	return b.Build()
}

func renderAssessment(w io.Writer, action domain.Action, a domain.RiskAssessment, rule string) {
	fmt.Fprintf(w, "%s (%s/%s): score %d, level %s, outcome %s (rule %s)\n",
		action.Type, action.Engine, action.Category, a.Score, a.Level, a.Recommendation, rule)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Factor", "Weight", "Value", "Contribution", "Exceeded", "Reason"})
	for _, f := range a.Factors {
		exceeded := ""
		if f.Exceeded {
			exceeded = "yes"
		}
		tw.AppendRow(table.Row{
			f.Name,
			fmt.Sprintf("%.2f", f.Weight),
			fmt.Sprintf("%.2f", f.Value),
			fmt.Sprintf("%.1f", f.Contribution()*100),
			exceeded,
			f.Reason,
		})
	}
	tw.Render()

	if len(a.Constraints) > 0 {
		fmt.Fprintln(w, "Constraints:")
		for _, c := range a.Constraints {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
}
