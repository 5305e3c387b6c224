// Package differ compares CloudFormation templates and cloud assemblies.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"

	cdkexample "github.com/lex00/cdk-example-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons.
	IgnoreOrder bool
	// IncludeMetadata also compares resource Metadata, which only carries
	// construct paths for synthesized templates.
	IncludeMetadata bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    cdkexample.TemplateDiff
	Summary cdkexample.DiffSummary
	// Outputs lists added, removed or modified output names.
	Outputs []string
}

// Empty reports whether the templates are equivalent.
func (r *Result) Empty() bool {
	return r.Summary.Total == 0 && len(r.Outputs) == 0
}

// Compare returns the differences going from before to after. A nil
// template is treated as empty.
func Compare(before, after *cdkexample.Template, opts Options) *Result {
	if before == nil {
		before = &cdkexample.Template{}
	}
	if after == nil {
		after = &cdkexample.Template{}
	}
	result := &Result{}

	for name, def := range after.Resources {
		if _, exists := before.Resources[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, cdkexample.DiffEntry{Resource: name, Type: def.Type})
		}
	}

	for name, old := range before.Resources {
		cur, exists := after.Resources[name]
		if !exists {
			result.Diff.Removed = append(result.Diff.Removed, cdkexample.DiffEntry{Resource: name, Type: old.Type})
			continue
		}
		if changes := compareResources(old, cur, opts); len(changes) > 0 {
			result.Diff.Modified = append(result.Diff.Modified, cdkexample.DiffEntry{
				Resource: name,
				Type:     cur.Type,
				Changes:  changes,
			})
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = cdkexample.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified

	result.Outputs = compareOutputs(before.Outputs, after.Outputs, opts)
	return result
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}

	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}

	return Compare(t1, t2, opts), nil
}

// LoadTemplate loads a CloudFormation template from a JSON or YAML file.
func LoadTemplate(path string) (*cdkexample.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var template cdkexample.Template
	if err := json.Unmarshal(data, &template); err != nil {
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}
	return &template, nil
}

func compareResources(before, after cdkexample.ResourceDef, opts Options) []string {
	var changes []string

	if before.Type != after.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s -> %s", before.Type, after.Type))
	}

	changes = append(changes, compareProperties("", before.Properties, after.Properties, opts)...)

	if !reflect.DeepEqual(sortedCopy(before.DependsOn), sortedCopy(after.DependsOn)) {
		changes = append(changes, "DependsOn changed")
	}
	if before.DeletionPolicy != after.DeletionPolicy {
		changes = append(changes, fmt.Sprintf("DeletionPolicy changed: %q -> %q", before.DeletionPolicy, after.DeletionPolicy))
	}
	if opts.IncludeMetadata && !deepEqual(before.Metadata, after.Metadata, opts) {
		changes = append(changes, "Metadata changed")
	}
	return changes
}

// compareProperties recursively compares property maps and reports changes
// by dotted path, descending into nested objects.
func compareProperties(prefix string, before, after map[string]any, opts Options) []string {
	var changes []string

	for key, val2 := range after {
		path := join(prefix, key)
		val1, exists := before[key]
		if !exists {
			changes = append(changes, path+" added")
			continue
		}
		m1, ok1 := val1.(map[string]any)
		m2, ok2 := val2.(map[string]any)
		if ok1 && ok2 && !isIntrinsic(m1) && !isIntrinsic(m2) {
			changes = append(changes, compareProperties(path, m1, m2, opts)...)
			continue
		}
		if !deepEqual(val1, val2, opts) {
			changes = append(changes, path+" modified")
		}
	}

	for key := range before {
		if _, exists := after[key]; !exists {
			changes = append(changes, join(prefix, key)+" removed")
		}
	}

	sort.Strings(changes)
	return changes
}

func compareOutputs(before, after map[string]cdkexample.Output, opts Options) []string {
	var changes []string
	for name, o := range after {
		prev, exists := before[name]
		switch {
		case !exists:
			changes = append(changes, name+" added")
		case !deepEqual(prev, o, opts):
			changes = append(changes, name+" modified")
		}
	}
	for name := range before {
		if _, exists := after[name]; !exists {
			changes = append(changes, name+" removed")
		}
	}
	sort.Strings(changes)
	return changes
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// isIntrinsic reports whether m is a single-key intrinsic function call,
// which is compared as a whole.
func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || (len(k) > 4 && k[:4] == "Fn::")
	}
	return false
}

// deepEqual compares the JSON forms of two values, optionally ignoring
// array order.
func deepEqual(a, b any, opts Options) bool {
	a, b = normalize(a), normalize(b)
	if opts.IgnoreOrder {
		a = normalizeOrder(a)
		b = normalizeOrder(b)
	}
	return reflect.DeepEqual(a, b)
}

// normalizeOrder sorts arrays by the JSON form of their elements.
func normalizeOrder(v any) any {
	switch val := v.(type) {
	case []any:
		result := make([]any, len(val))
		for i, elem := range val {
			result[i] = normalizeOrder(elem)
		}
		sort.SliceStable(result, func(i, j int) bool {
			return jsonKey(result[i]) < jsonKey(result[j])
		})
		return result
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = normalizeOrder(v)
		}
		return result
	default:
		return v
	}
}

func jsonKey(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// normalize converts a Go value to its generic JSON form.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []cdkexample.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
