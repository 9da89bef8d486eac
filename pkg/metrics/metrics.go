// Package metrics renders active-table counters in Prometheus text
// exposition format, shared by cmd/bpcat (which serves it over HTTP for
// a running agent) and cmd/bpstat (which fetches and prints it),
// grounded on the teacher's pkg/gateway/http request/response split
// between a server handler and a paired client.
package metrics

import (
	"fmt"
	"io"

	"github.com/dtnagent/bpv6/pkg/active"
)

// WriteActiveTable writes table's capacity/count/availability as
// Prometheus gauges to w.
func WriteActiveTable(w io.Writer, table *active.Table) error {
	lines := []struct {
		name, help string
		value      int
	}{
		{"bpv6_active_table_capacity", "maximum number of in-flight custody IDs", table.Capacity()},
		{"bpv6_active_table_entries", "current number of in-flight custody IDs", table.Count()},
		{"bpv6_active_table_has_room", "whether the table can accept another entry", boolToGauge(table.Available())},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", l.name, l.help, l.name, l.name, l.value); err != nil {
			return err
		}
	}
	return nil
}

func boolToGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
