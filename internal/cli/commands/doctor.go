package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run a health check over datasets and experiments",
		Long: `Profile every registered dataset and inspect the experiment history.

The report includes:
- Project summary (datasets, rows, versions, experiments)
- Health checks grouped by category (Storage, Quality, Experiments)
- Health score (0-100)
- Actionable recommendations`,
		Example: `  # Run health check
  leapml doctor

  # Output as JSON
  leapml doctor -o json`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

// DoctorOutput is the structured output of the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Datasets    int `json:"datasets"`
	Rows        int `json:"rows"`
	Versions    int `json:"versions"`
	Experiments int `json:"experiments"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

type healthRule struct {
	ID             string
	Name           string
	Group          string
	Error          bool
	Recommendation string
}

var healthRules = []healthRule{
	{"DS01", "Dataset file present", "storage", true, "Re-register datasets whose files were moved or deleted"},
	{"DS02", "Dataset readable", "storage", true, "Check the format and encoding of datasets that fail to load"},
	{"DQ01", "Missing values", "quality", false, "Fill or drop missing values with 'leapml preprocess'"},
	{"DQ02", "Outliers", "quality", false, "Review outliers and clip them with 'leapml preprocess --action replace_outliers'"},
	{"DQ03", "Constant columns", "quality", false, "Leave constant columns out of experiment features"},
	{"DQ04", "Identifier-like columns", "quality", false, "Leave identifier-like columns out of experiment features"},
	{"EX01", "Failed experiments", "experiments", false, "Inspect failed experiments with 'leapml experiment show'"},
	{"EX02", "Unfinished training", "experiments", false, "Recreate experiments that were interrupted while training"},
}

// finding is one issue raised by a health rule.
type finding struct {
	RuleID  string
	Message string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	datasets, err := eng.ListDatasets(ctx)
	if err != nil {
		return err
	}
	experiments, err := eng.ListExperiments(ctx, 0)
	if err != nil {
		return err
	}

	var summary ProjectSummary
	var findings []finding
	summary.Datasets = len(datasets)
	for _, ds := range datasets {
		summary.Rows += ds.RowsCount
		if versions, err := eng.ListVersions(ctx, ds.ID); err == nil {
			summary.Versions += len(versions)
		}

		if _, err := os.Stat(ds.FilePath); err != nil {
			findings = append(findings, finding{"DS01", fmt.Sprintf("%s: %s not found", ds.Name, ds.FilePath)})
			continue
		}
		analysis, err := eng.AnalyzeDataset(ctx, ds.ID, engine.AnalyzeRequest{})
		if err != nil {
			findings = append(findings, finding{"DS02", fmt.Sprintf("%s: %v", ds.Name, err)})
			continue
		}
		findings = append(findings, checkProfiles(ds.Name, analysis.Profiles)...)
	}

	summary.Experiments = len(experiments)
	for _, exp := range experiments {
		switch exp.Status {
		case core.ExperimentCompleted:
			summary.Completed++
		case core.ExperimentFailed:
			summary.Failed++
		}
	}
	findings = append(findings, checkExperiments(experiments)...)

	out := buildDoctorOutput(summary, findings)
	cmdCtx.Logger.Debug("health check finished", "datasets", summary.Datasets, "issues", out.IssueCount)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeYAML:
		return r.YAML(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// checkProfiles applies the data quality rules to the column profiles of
// one dataset.
func checkProfiles(dataset string, profiles []*profile.ColumnProfile) []finding {
	var out []finding
	for _, p := range profiles {
		col := dataset + "." + p.Name
		if p.TotalMissing > 0 {
			out = append(out, finding{"DQ01", fmt.Sprintf("%s: %d missing (%.1f%%)", col, p.TotalMissing, p.MissingPercentage)})
		}
		if p.Outliers.HasOutliers() {
			n := 0
			for _, rep := range []*profile.OutlierReport{p.Outliers.IQR, p.Outliers.ZScore, p.Outliers.Range} {
				if rep != nil && rep.Count > n {
					n = rep.Count
				}
			}
			out = append(out, finding{"DQ02", fmt.Sprintf("%s: %d outliers", col, n)})
		}
		present := p.TotalCount - p.TotalMissing
		if present > 0 && p.UniqueCount == 1 {
			out = append(out, finding{"DQ03", col + ": single value"})
		}
		if present > 1 && p.UniqueCount == present && p.DataType != profile.TypeNumerical {
			out = append(out, finding{"DQ04", fmt.Sprintf("%s: %d distinct values in %d rows", col, p.UniqueCount, present)})
		}
	}
	return out
}

func checkExperiments(experiments []*core.Experiment) []finding {
	var out []finding
	for _, exp := range experiments {
		switch exp.Status {
		case core.ExperimentFailed:
			out = append(out, finding{"EX01", fmt.Sprintf("%d (%s): %s", exp.ID, exp.Name, exp.ErrorMessage)})
		case core.ExperimentTraining:
			out = append(out, finding{"EX02", fmt.Sprintf("%d (%s) is still training", exp.ID, exp.Name)})
		}
	}
	return out
}

func buildDoctorOutput(summary ProjectSummary, findings []finding) *DoctorOutput {
	byRule := make(map[string][]finding)
	for _, f := range findings {
		byRule[f.RuleID] = append(byRule[f.RuleID], f)
	}

	healthChecks := make([]HealthCheck, 0, len(healthRules))
	for _, rule := range healthRules {
		ruleFindings := byRule[rule.ID]
		status := "pass"
		if len(ruleFindings) > 0 {
			if rule.Error {
				status = "error"
			} else {
				status = "warn"
			}
		}

		details := make([]string, 0, len(ruleFindings))
		for _, f := range ruleFindings {
			details = append(details, f.Message)
		}

		healthChecks = append(healthChecks, HealthCheck{
			RuleID:     rule.ID,
			Name:       rule.Name,
			Group:      rule.Group,
			Status:     status,
			IssueCount: len(ruleFindings),
			Details:    details,
		})
	}

	// Sort health checks by group then by rule ID
	sort.SliceStable(healthChecks, func(i, j int) bool {
		if healthChecks[i].Group != healthChecks[j].Group {
			return groupOrder(healthChecks[i].Group) < groupOrder(healthChecks[j].Group)
		}
		return healthChecks[i].RuleID < healthChecks[j].RuleID
	})

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    healthChecks,
		Score:           calculateHealthScore(healthChecks, summary.Datasets),
		Recommendations: generateRecommendations(healthChecks),
		IssueCount:      len(findings),
	}
}

func groupOrder(group string) int {
	switch group {
	case "storage":
		return 0
	case "quality":
		return 1
	default:
		return 2
	}
}

// calculateHealthScore computes a health score from 0-100.
// Errors cost twice as much as warnings; with more datasets each issue
// weighs less.
func calculateHealthScore(checks []HealthCheck, datasetCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if datasetCount > 5 {
		basePenalty = 3.0
	}
	if datasetCount > 20 {
		basePenalty = 2.0
	}
	if datasetCount > 50 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	return int(min(max(score, 0), 100))
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		for _, rule := range healthRules {
			if rule.ID == check.RuleID && rule.Recommendation != "" {
				recommendations = append(recommendations, rule.Recommendation)
			}
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

func groupTitle(group string) string {
	if group == "" {
		return group
	}
	return strings.ToUpper(group[:1]) + group[1:]
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("LeapML Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Datasets: %d | Rows: %d | Versions: %d\n", out.Summary.Datasets, out.Summary.Rows, out.Summary.Versions)
	r.Printf("   Experiments: %d | Completed: %d | Failed: %d\n", out.Summary.Experiments, out.Summary.Completed, out.Summary.Failed)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + groupTitle(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# LeapML Project Health Report")
	r.Println("")

	r.Println("## Project Summary")
	r.Println("")
	r.Printf("- **Datasets**: %d\n", out.Summary.Datasets)
	r.Printf("- **Rows**: %d\n", out.Summary.Rows)
	r.Printf("- **Versions**: %d\n", out.Summary.Versions)
	r.Printf("- **Experiments**: %d (%d completed, %d failed)\n", out.Summary.Experiments, out.Summary.Completed, out.Summary.Failed)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + groupTitle(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
