package awss3_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/internal/template"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func mustBuilder(t *testing.T, stack *construct.Stack) *template.Builder {
	t.Helper()
	b, err := stack.Builder()
	require.NoError(t, err)
	return b
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
