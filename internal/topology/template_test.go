package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Render(t *testing.T) {
	t.Parallel()

	g, err := sampleBuilder(t).Build()
	require.NoError(t, err)

	tmpl := g.Template()
	assert.Equal(t, FormatVersion, tmpl.FormatVersion)
	assert.Equal(t, "sample", tmpl.Description)
	require.Contains(t, tmpl.Resources, "Bucket")
	assert.Equal(t, DeletionRetain, tmpl.Resources["Bucket"].DeletionPolicy)
	assert.Equal(t, "store", tmpl.Resources["Bucket"].Metadata[MetadataComponentKey])

	data, err := tmpl.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"AWSTemplateFormatVersion": "2010-09-09"`)

	yamlData, err := tmpl.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "AWSTemplateFormatVersion:")
	assert.Contains(t, string(yamlData), "2010-09-09")
}

func TestDiff_ResynthesisHasNoChanges(t *testing.T) {
	t.Parallel()

	g, err := sampleBuilder(t).Build()
	require.NoError(t, err)
	data, err := g.Template().JSON()
	require.NoError(t, err)

	deployed, err := ParseTemplate(data)
	require.NoError(t, err)

	again, err := sampleBuilder(t).Build()
	require.NoError(t, err)

	changes, err := Diff(deployed, again.Template())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiff_YAMLDeployedTemplate(t *testing.T) {
	t.Parallel()

	g, err := sampleBuilder(t).Build()
	require.NoError(t, err)
	data, err := g.Template().YAML()
	require.NoError(t, err)

	deployed, err := ParseTemplate(data)
	require.NoError(t, err)

	changes, err := Diff(deployed, g.Template())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiff_ReportsChanges(t *testing.T) {
	t.Parallel()

	g, err := sampleBuilder(t).Build()
	require.NoError(t, err)

	b := NewBuilder("sample")
	require.NoError(t, b.Add(Resource{
		LogicalID: "Vpc", Type: "AWS::EC2::VPC", Component: ComponentNetwork,
		Properties: map[string]any{"CidrBlock": "10.1.0.0/16"},
	}))
	require.NoError(t, b.Add(Resource{
		LogicalID: "Queue", Type: "AWS::SQS::Queue", Component: ComponentStore,
	}))
	next, err := b.Build()
	require.NoError(t, err)

	changes, err := Diff(g.Template(), next.Template())
	require.NoError(t, err)

	actions := make(map[string]ChangeAction)
	for _, c := range changes {
		actions[c.LogicalID] = c.Action
	}
	assert.Equal(t, ChangeModify, actions["Vpc"])
	assert.Equal(t, ChangeAdd, actions["Queue"])
	assert.Equal(t, ChangeRemove, actions["Bucket"])
	assert.Equal(t, ChangeRemove, actions["Group"])
	assert.Len(t, changes, 7)
}

func TestParseTemplate_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseTemplate([]byte("Resources: [unclosed"))
	assert.Error(t, err)
}
