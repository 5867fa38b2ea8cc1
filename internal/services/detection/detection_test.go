package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/domain/sigmarule"
)

func TestEvalConditionSimpleAnd(t *testing.T) {
	ok, err := evalCondition("selection1 and not selection2", map[string]bool{
		"selection1": true, "selection2": false,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalConditionParens(t *testing.T) {
	ok, err := evalCondition("(a or b) and not c", map[string]bool{
		"a": false, "b": true, "c": false,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalConditionUnknownSelectionIsFalsy(t *testing.T) {
	ok, err := evalCondition("selectionX", map[string]bool{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateDetectionContainsOperator(t *testing.T) {
	d := sigmarule.Detection{
		Selections: map[string]sigmarule.Selection{
			"sel1": {Matchers: []sigmarule.Matcher{
				{Field: "message", Op: sigmarule.OpContains, Value: "panic"},
			}},
		},
		Condition: "sel1",
	}
	log := logentry.Log{Message: "goroutine panic: nil pointer"}

	matched, err := evaluateDetection(d, log)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateDetectionMetadataField(t *testing.T) {
	d := sigmarule.Detection{
		Selections: map[string]sigmarule.Selection{
			"sel1": {Matchers: []sigmarule.Matcher{
				{Field: "user.role", Op: sigmarule.OpEquals, Value: "admin"},
			}},
		},
		Condition: "sel1",
	}
	log := logentry.Log{Metadata: map[string]any{"user.role": "admin"}}

	matched, err := evaluateDetection(d, log)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateDetectionInvalidRegexPropagatesError(t *testing.T) {
	d := sigmarule.Detection{
		Selections: map[string]sigmarule.Selection{
			"sel1": {Matchers: []sigmarule.Matcher{
				{Field: "message", Op: sigmarule.OpRegex, Value: "("},
			}},
		},
		Condition: "sel1",
	}
	_, err := evaluateDetection(d, logentry.Log{Message: "x"})
	assert.Error(t, err)
}
