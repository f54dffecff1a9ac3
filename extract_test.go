package main

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractMetricFallbackOrder(t *testing.T) {
	patterns, err := CompilePatterns([]string{`nope:(\d+)`, `tok:(\d+\.?\d*)`})
	require.Nil(t, err)

	value := ExtractMetric("tok:12.5", patterns)
	require.NotNil(t, value)
	require.Equal(t, 12.5, *value)

	require.Nil(t, ExtractMetric("nothing here", patterns))
}

func TestExtractMetricNonNumericCapture(t *testing.T) {
	patterns, err := CompilePatterns([]string{`val:(\w+)`, `num:(\d+)`})
	require.Nil(t, err)

	value := ExtractMetric("val:abc num:7", patterns)
	require.NotNil(t, value)
	require.Equal(t, 7.0, *value)
}

func TestExtractMetricCaseInsensitive(t *testing.T) {
	patterns, err := CompilePatterns([]string{`tokens/sec:\s*([0-9.]+)`})
	require.Nil(t, err)

	value := ExtractMetric("noise\nTokens/SEC: 41.7000\nmore", patterns)
	require.NotNil(t, value)
	require.Equal(t, 41.7, *value)
}

func TestExtractMetricNoCaptureGroup(t *testing.T) {
	patterns, err := CompilePatterns([]string{`tok:\d+`, `tok:(\d+)`})
	require.Nil(t, err)

	value := ExtractMetric("tok:9", patterns)
	require.NotNil(t, value)
	require.Equal(t, 9.0, *value)
}

func TestExtractAuxMetrics(t *testing.T) {
	load, err := CompilePatterns([]string{`load_ms:\s*([0-9.]+)`})
	require.Nil(t, err)
	missing, err := CompilePatterns([]string{`never:(\d+)`})
	require.Nil(t, err)

	values := ExtractAuxMetrics("load_ms: 120.5", map[string][]*regexp.Regexp{
		"load_ms": load,
		"never":   missing,
	})
	require.Equal(t, map[string]float64{"load_ms": 120.5}, values)
}

func TestCompilePatternsInvalid(t *testing.T) {
	_, err := CompilePatterns([]string{`tok:(\d+`})
	require.NotNil(t, err)
}
