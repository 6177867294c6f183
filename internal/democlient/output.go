// Package democlient implements the SysInfo demo client: gRPC unary and
// streaming calls, REST polling and WebSocket watching, and their rendering.
package democlient

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/sysinfo/pkg/models"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON, OutputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Printer renders results to Writer.
type Printer struct {
	Format OutputFormat
	Writer io.Writer
}

// NewPrinter returns a text printer on stdout.
func NewPrinter() *Printer {
	return &Printer{Format: OutputText, Writer: os.Stdout}
}

// Print renders v in the configured format.
func (p *Printer) Print(v any) error {
	switch p.Format {
	case OutputJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(p.Writer, string(b))
		return err
	case OutputYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = fmt.Fprint(p.Writer, "---\n"+string(b))
		return err
	default:
		return p.printText(v)
	}
}

// Notef writes an informational line. It is suppressed for machine formats
// so their output stays parseable.
func (p *Printer) Notef(format string, args ...any) {
	if p.Format != OutputText {
		return
	}
	fmt.Fprintf(p.Writer, format+"\n", args...)
}

func (p *Printer) printText(v any) error {
	w := tabwriter.NewWriter(p.Writer, 0, 0, 2, ' ', 0)
	switch x := v.(type) {
	case models.SystemInfoResponse:
		writeSnapshot(w, x)
	case *models.SystemInfoResponse:
		writeSnapshot(w, *x)
	case Comparison:
		fmt.Fprintf(w, "gRPC unary\t%s\t%d bytes\n", x.GRPC.Round(time.Microsecond), x.GRPCBytes)
		fmt.Fprintf(w, "REST GET\t%s\t%d bytes\n", x.REST.Round(time.Microsecond), x.RESTBytes)
		fmt.Fprintf(w, "Faster\t%s\t\n", x.Faster())
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, x[k])
		}
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return w.Flush()
}

func writeSnapshot(w io.Writer, s models.SystemInfoResponse) {
	mem := s.MemoryInfo
	fmt.Fprintf(w, "Time\t%s\n", time.Unix(s.Timestamp, 0).Format(time.RFC3339))
	fmt.Fprintf(w, "OS\t%s\n", s.OSName)
	fmt.Fprintf(w, "Version\t%s\n", s.OSVersion)
	fmt.Fprintf(w, "CPU\t%.2f%%\n", s.CPUUsagePercent)
	fmt.Fprintf(w, "Memory\t%s / %s (%.2f%%)\n", humanBytes(mem.UsedBytes), humanBytes(mem.TotalBytes), mem.UsagePercent)
	fmt.Fprintf(w, "Uptime\t%s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
