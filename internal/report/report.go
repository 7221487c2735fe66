// Package report renders run statistics for terminal and machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/wehubfusion/Sisyphus/pkg/task"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Format represents the output format type.
type Format string

const (
	// FormatTable renders a colored terminal summary with a failure table.
	FormatTable Format = "table"
	// FormatJSON renders the statistics as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders the statistics as YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. An empty name means table.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// Options holds configuration for rendering.
type Options struct {
	// NoColor disables color output.
	NoColor bool

	// NoHeaders disables the failure table headers.
	NoHeaders bool
}

// Option is a functional option for configuring rendering.
type Option func(*Options)

// WithNoColor disables color output.
func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

// WithNoHeaders disables table headers.
func WithNoHeaders(noHeaders bool) Option {
	return func(o *Options) {
		o.NoHeaders = noHeaders
	}
}

// document is the machine-readable projection of a statistics snapshot.
type document struct {
	Task      string       `json:"task" yaml:"task"`
	RunID     string       `json:"run_id" yaml:"run_id"`
	Submitted int          `json:"submitted" yaml:"submitted"`
	Succeeded int          `json:"succeeded" yaml:"succeeded"`
	Failed    int          `json:"failed" yaml:"failed"`
	Cancelled int          `json:"cancelled" yaml:"cancelled"`
	Duration  string       `json:"duration" yaml:"duration"`
	Failures  []failureDoc `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type failureDoc struct {
	Index int    `json:"index" yaml:"index"`
	Item  string `json:"item" yaml:"item"`
	Error string `json:"error" yaml:"error"`
}

func newDocument(stats task.Statistics) document {
	doc := document{
		Task:      stats.TaskName,
		RunID:     stats.RunID,
		Submitted: stats.Submitted,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Cancelled: stats.Cancelled,
		Duration:  stats.Duration.Round(time.Millisecond).String(),
	}
	for _, f := range stats.Failures {
		doc.Failures = append(doc.Failures, failureDoc{
			Index: f.Target.Index,
			Item:  f.Target.Preview(),
			Error: f.Err.Error(),
		})
	}
	return doc
}

// Write renders stats to w in the requested format.
func Write(w io.Writer, format Format, stats task.Statistics, opts ...Option) error {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, stats)
	case FormatYAML:
		return writeYAML(w, stats)
	default:
		return writeTable(w, stats, options)
	}
}

func writeJSON(w io.Writer, stats task.Statistics) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newDocument(stats))
}

func writeYAML(w io.Writer, stats task.Statistics) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(newDocument(stats))
}

func writeTable(w io.Writer, stats task.Statistics, options *Options) error {
	colors := newColorScheme(w, options.NoColor)
	title := cases.Title(language.English)

	fmt.Fprintf(w, "%s run %s finished in %s\n",
		stats.TaskName, stats.RunID, stats.Duration.Round(time.Millisecond))

	buckets := []struct {
		kind  task.Kind
		count int
	}{
		{task.KindSuccess, stats.Succeeded},
		{task.KindFailed, stats.Failed},
		{task.KindCancelled, stats.Cancelled},
	}

	parts := make([]string, 0, len(buckets))
	for _, b := range buckets {
		label := fmt.Sprintf("%s: %d", title.String(string(b.kind)), b.count)
		if !colors.Disabled && b.count > 0 {
			label = colors.outcomeColor(string(b.kind))(label)
		}
		parts = append(parts, label)
	}
	fmt.Fprintf(w, "%s (of %d submitted)\n", strings.Join(parts, "  "), stats.Submitted)

	if len(stats.Failures) == 0 {
		return nil
	}

	fmt.Fprintln(w, "")
	table := newTable(w)
	if !options.NoHeaders {
		headers := []string{"INDEX", "ITEM", "ERROR"}
		if !colors.Disabled {
			for i, h := range headers {
				headers[i] = colors.Header(h)
			}
		}
		table.SetHeader(headers)
	}
	for _, f := range stats.Failures {
		table.Append([]string{
			strconv.Itoa(f.Target.Index),
			f.Target.Preview(),
			f.Err.Error(),
		})
	}
	table.Render()
	return nil
}

// newTable creates a borderless, tab-padded table in the kubectl style.
func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}
