package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/savaki/gamelift-backend/internal/resource"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s", title)
	return t
}

// identifiers formats ids one per line in key order.
func identifiers(ids map[string]string) string {
	lines := make([]string, 0, len(ids))
	for _, key := range slices.Sorted(maps.Keys(ids)) {
		lines = append(lines, key+"="+ids[key])
	}
	return strings.Join(lines, "\n")
}

func renderResult(w io.Writer, result *resource.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, result)
	}

	t := newTable(w, fmt.Sprintf("%s %s (namespace %s, run %s)", result.Operation, result.Target, result.Namespace, result.RunID))
	t.AppendHeader(table.Row{"Kind", "Name", "Outcome", "Detail"})
	for _, o := range result.Outcomes {
		detail := identifiers(o.Identifiers)
		if o.Cause != "" {
			detail = o.Cause
		}
		t.AppendRow(table.Row{o.Kind, o.Name, o.Type, detail})
	}
	t.Render()
	return nil
}

type statusView struct {
	Namespace string             `json:"namespace"`
	Records   []*resource.Record `json:"records"`
}

func renderStatus(w io.Writer, namespace string, snapshot resource.Snapshot, asJSON bool) error {
	if asJSON {
		return writeJSON(w, statusView{Namespace: namespace, Records: snapshot.Records()})
	}

	t := newTable(w, "namespace "+namespace)
	t.AppendHeader(table.Row{"Kind", "Name", "Status", "Identifiers", "Updated"})
	for _, kind := range resource.Kinds {
		record, ok := snapshot[kind]
		if !ok {
			t.AppendRow(table.Row{kind, "", "ABSENT", "", ""})
			continue
		}
		detail := identifiers(record.Identifiers)
		if record.Error != "" {
			detail = record.ErrorCode + ": " + record.Error
		}
		t.AppendRow(table.Row{kind, record.Name, record.Status, detail, record.UpdatedAt.Format("2006-01-02 15:04:05")})
	}
	t.Render()
	return nil
}

func renderAccess(w io.Writer, access *provider.AccessReport, asJSON bool) error {
	if asJSON {
		return writeJSON(w, access)
	}

	t := newTable(w, "caller")
	t.AppendRows([]table.Row{
		{"Account", access.Account},
		{"Arn", access.Arn},
		{"User", access.UserName},
		{"Policies", strings.Join(access.Policies, "\n")},
		{"Administrator", access.Administrator},
	})
	t.Render()
	return nil
}
