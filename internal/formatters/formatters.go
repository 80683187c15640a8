package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"resumerank/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("yaml", "any", &YAMLFormatter{})
	registry.RegisterFormatter("text", "Summary", &SummaryTextFormatter{})
	registry.RegisterFormatter("markdown", "Summary", &SummaryMarkdownFormatter{})
	registry.RegisterFormatter("text", "AddReport", &AddReportTextFormatter{})
	registry.RegisterFormatter("markdown", "AddReport", &AddReportMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Summary:
		return "Summary"
	case types.AddReport:
		return "AddReport"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// YAMLFormatter handles YAML formatting for any data type
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	out, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return "any"
}

// SummaryTextFormatter renders a ranked summary as plain text
type SummaryTextFormatter struct{}

func (stf *SummaryTextFormatter) Format(data any) (string, error) {
	summary, ok := data.(types.Summary)
	if !ok {
		return "", fmt.Errorf("expected Summary, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== ANALYSIS SUMMARY ===\n")
	output.WriteString(fmt.Sprintf("Total: %d  Successful: %d  Failed: %d\n", summary.Total, summary.Succeeded, summary.Failed))
	if summary.Inconsistent > 0 {
		output.WriteString(fmt.Sprintf("Uploads without a result: %d\n", summary.Inconsistent))
	}
	output.WriteString("\n")

	if summary.AllFailed() {
		output.WriteString("All uploads failed. Please try again.\n")
	} else {
		output.WriteString("=== TOP CANDIDATES ===\n")
		for _, r := range summary.TopN {
			output.WriteString(fmt.Sprintf("#%d %s - %.0f%% (%s)\n", r.Rank, displayName(r), r.OverallFitPercentage, types.FitClass(r.OverallFitPercentage)))
		}
		output.WriteString("\n")

		output.WriteString("=== ALL CANDIDATES ===\n")
		for _, r := range summary.Ranked {
			writeCandidateText(&output, r)
		}
	}

	if len(summary.FailedItems) > 0 {
		output.WriteString("=== FAILED FILES ===\n")
		for _, f := range summary.FailedItems {
			output.WriteString(fmt.Sprintf("- %s: %s\n", f.Filename, f.Error))
		}
	}

	return output.String(), nil
}

func (stf *SummaryTextFormatter) SupportedType() string {
	return "Summary"
}

func writeCandidateText(output *strings.Builder, r types.AnalysisResult) {
	output.WriteString(fmt.Sprintf("#%d %s\n", r.Rank, displayName(r)))
	output.WriteString(fmt.Sprintf("  File: %s\n", r.Filename))
	output.WriteString(fmt.Sprintf("  Fit: %.0f%% (%s)", r.OverallFitPercentage, types.FitClass(r.OverallFitPercentage)))
	if r.FitStatus != "" {
		output.WriteString(" - " + r.FitStatus)
	}
	output.WriteString("\n")
	if r.Recommendation.Decision != "" {
		output.WriteString(fmt.Sprintf("  Recommendation: %s\n", r.Recommendation.Decision))
	}
	if r.RiskLevel != "" {
		output.WriteString(fmt.Sprintf("  Risk: %s\n", types.RiskClass(r.RiskLevel)))
	}
	for _, name := range scorecardKeys(r.Scorecard) {
		output.WriteString(fmt.Sprintf("  %s: %.1f/5\n", name, r.Scorecard[name]))
	}
	output.WriteString("\n")
}

// SummaryMarkdownFormatter renders a ranked summary as markdown
type SummaryMarkdownFormatter struct{}

func (smf *SummaryMarkdownFormatter) Format(data any) (string, error) {
	summary, ok := data.(types.Summary)
	if !ok {
		return "", fmt.Errorf("expected Summary, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Analysis Summary\n\n")
	output.WriteString(fmt.Sprintf("**Total:** %d | **Successful:** %d | **Failed:** %d\n\n", summary.Total, summary.Succeeded, summary.Failed))

	if summary.AllFailed() {
		output.WriteString("> All uploads failed. Please try again.\n\n")
	} else {
		output.WriteString("## Ranking\n\n")
		output.WriteString("| Rank | Candidate | File | Fit | Recommendation |\n")
		output.WriteString("|---:|---|---|---:|---|\n")
		for _, r := range summary.Ranked {
			output.WriteString(fmt.Sprintf("| %d | %s | %s | %.0f%% | %s |\n",
				r.Rank, escapeCell(displayName(r)), escapeCell(r.Filename), r.OverallFitPercentage,
				escapeCell(orDash(r.Recommendation.Decision))))
		}
		output.WriteString("\n")

		for _, r := range summary.TopN {
			writeCandidateMarkdown(&output, r)
		}
	}

	if len(summary.FailedItems) > 0 {
		output.WriteString("## Failed Files\n\n")
		for _, f := range summary.FailedItems {
			output.WriteString(fmt.Sprintf("- **%s**: %s\n", f.Filename, f.Error))
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (smf *SummaryMarkdownFormatter) SupportedType() string {
	return "Summary"
}

func writeCandidateMarkdown(output *strings.Builder, r types.AnalysisResult) {
	output.WriteString(fmt.Sprintf("## #%d %s\n\n", r.Rank, displayName(r)))
	output.WriteString(fmt.Sprintf("**Fit:** %.0f%% (%s)\n\n", r.OverallFitPercentage, types.FitClass(r.OverallFitPercentage)))

	if r.PrimaryBackground != "" {
		output.WriteString(fmt.Sprintf("**Background:** %s\n\n", r.PrimaryBackground))
	}
	if r.PrimaryGap != "" {
		output.WriteString(fmt.Sprintf("**Primary gap:** %s\n\n", r.PrimaryGap))
	}

	if len(r.Scorecard) > 0 {
		output.WriteString("### Scorecard\n\n")
		for _, name := range scorecardKeys(r.Scorecard) {
			output.WriteString(fmt.Sprintf("- %s: %.1f/5\n", name, r.Scorecard[name]))
		}
		output.WriteString("\n")
	}

	writeList(output, "Strengths", r.Strengths)
	writeList(output, "Weaknesses", r.Weaknesses)
	writeList(output, "Risks", r.Risks)

	if r.Recommendation.Decision != "" {
		output.WriteString("### Recommendation\n\n")
		output.WriteString(fmt.Sprintf("**%s**", r.Recommendation.Decision))
		if r.Recommendation.Reasoning != "" {
			output.WriteString(": " + r.Recommendation.Reasoning)
		}
		output.WriteString("\n\n")
	}
}

func writeList(output *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	output.WriteString(fmt.Sprintf("### %s\n\n", title))
	for _, item := range items {
		output.WriteString(fmt.Sprintf("- %s\n", item))
	}
	output.WriteString("\n")
}

// AddReportTextFormatter renders the outcome of adding files
type AddReportTextFormatter struct{}

func (atf *AddReportTextFormatter) Format(data any) (string, error) {
	report, ok := data.(types.AddReport)
	if !ok {
		return "", fmt.Errorf("expected AddReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("%d files added to queue\n", len(report.Added)))
	if len(report.Skipped) > 0 {
		output.WriteString(fmt.Sprintf("%d duplicates skipped\n", len(report.Skipped)))
	}
	for _, r := range report.Rejected {
		output.WriteString(fmt.Sprintf("rejected %s: %s\n", r.Filename, r.Reason))
	}
	if report.QueueFull {
		output.WriteString("Upload queue is full\n")
	}
	return output.String(), nil
}

func (atf *AddReportTextFormatter) SupportedType() string {
	return "AddReport"
}

// AddReportMarkdownFormatter renders the outcome of adding files as markdown
type AddReportMarkdownFormatter struct{}

func (amf *AddReportMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(types.AddReport)
	if !ok {
		return "", fmt.Errorf("expected AddReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Upload Queue\n\n")
	writeList(&output, "Added", report.Added)
	writeList(&output, "Skipped duplicates", report.Skipped)
	if len(report.Rejected) > 0 {
		output.WriteString("### Rejected\n\n")
		for _, r := range report.Rejected {
			output.WriteString(fmt.Sprintf("- **%s**: %s\n", r.Filename, r.Reason))
		}
		output.WriteString("\n")
	}
	if report.QueueFull {
		output.WriteString("> Upload queue is full\n")
	}
	return output.String(), nil
}

func (amf *AddReportMarkdownFormatter) SupportedType() string {
	return "AddReport"
}

func displayName(r types.AnalysisResult) string {
	if r.CandidateName != "" {
		return r.CandidateName
	}
	if r.Filename != "" {
		return r.Filename
	}
	return "Unknown candidate"
}

func scorecardKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// GlobalRegistry is the shared registry used by output handlers
var GlobalRegistry = NewFormatterRegistry()
