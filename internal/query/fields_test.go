package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/synapsegraph/synapse-go/internal/graph"
)

func TestFieldValue_Presence(t *testing.T) {
	t.Parallel()

	bare := &graph.KnowledgeNode{ID: "n", Type: graph.NodeFunction, Name: "n", Path: "n.go"}

	t.Run("ScalarsAlwaysPresent", func(t *testing.T) {
		t.Parallel()
		for _, field := range []string{"id", "type", "name", "path", "size", "metadata.complexity", "metadata.linesOfCode"} {
			_, present := fieldValue(bare, field)
			assert.True(t, present, field)
		}

		v, _ := fieldValue(bare, "metadata.complexity")
		assert.Equal(t, 0.0, v)
	})

	t.Run("OptionalFieldsAbsentWhenEmpty", func(t *testing.T) {
		t.Parallel()
		for _, field := range []string{
			"absolutePath", "lastModified", "tags", "metadata.language",
			"metadata.documentation", "semantics.purpose", "semantics.operations", "errors",
		} {
			_, present := fieldValue(bare, field)
			assert.False(t, present, field)
		}
	})

	t.Run("OptionalFieldsPresentWhenSet", func(t *testing.T) {
		t.Parallel()
		n := &graph.KnowledgeNode{
			ID: "n", Type: graph.NodeFunction, Name: "n", Path: "n.go",
			LastModified: time.Now(),
			Tags:         []string{"exported"},
			Errors:       []graph.NodeError{{Type: "parse"}, {Type: "lint"}},
		}

		_, present := fieldValue(n, "lastModified")
		assert.True(t, present)
		_, present = fieldValue(n, "tags")
		assert.True(t, present)

		// errors resolves to the error count
		v, present := fieldValue(n, "errors")
		assert.True(t, present)
		assert.Equal(t, 2.0, v)
	})

	t.Run("UnknownPathAbsent", func(t *testing.T) {
		t.Parallel()
		_, present := fieldValue(bare, "metadata.bogus")
		assert.False(t, present)
	})
}

func TestSupportedFields(t *testing.T) {
	t.Parallel()

	fields := SupportedFields()
	assert.Contains(t, fields, "id")
	assert.Contains(t, fields, "metadata.complexity")
	assert.Contains(t, fields, "semantics.purpose")
	assert.Len(t, fields, len(fieldTable))
}
