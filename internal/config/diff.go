package config

import (
	"reflect"
	"sort"
	"strings"

	logx "starloc/pkg/logx"
)

// SummarizeChange returns (1) the changed top-level sections and (2) fields
// for a single reload record: which formatters, handlers and routes were
// added, removed or modified.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	fields := make([]logx.Field, 0, 8)

	if oldCfg.DisableExistingLoggers != newCfg.DisableExistingLoggers {
		changed = append(changed, "disable_existing_loggers")
		fields = append(fields, logx.Bool("disable_existing_loggers", newCfg.DisableExistingLoggers))
	}
	if d := diffKeys(oldCfg.Formatters, newCfg.Formatters); len(d) > 0 {
		changed = append(changed, "formatters")
		fields = append(fields, logx.String("formatters", strings.Join(d, ",")))
	}
	if d := diffKeys(oldCfg.Handlers, newCfg.Handlers); len(d) > 0 {
		changed = append(changed, "handlers")
		fields = append(fields, logx.String("handlers", strings.Join(d, ",")))
	}
	if d := diffKeys(oldCfg.Loggers, newCfg.Loggers); len(d) > 0 {
		changed = append(changed, "loggers")
		fields = append(fields, logx.String("loggers", strings.Join(d, ",")))
	}
	return changed, fields
}

// diffKeys lists entries that differ as "+name", "-name" or "~name", sorted
// by name. The root route shows up as "<root>".
func diffKeys[V any](oldM, newM map[string]V) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		label := name
		if label == "" {
			label = "<root>"
		}
		o, inOld := oldM[name]
		n, inNew := newM[name]
		switch {
		case !inOld:
			out = append(out, "+"+label)
		case !inNew:
			out = append(out, "-"+label)
		case !reflect.DeepEqual(o, n):
			out = append(out, "~"+label)
		}
	}
	return out
}
