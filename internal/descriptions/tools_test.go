package descriptions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetToolDescription(t *testing.T) {
	assert.Equal(t, TemplateCreateDescription, GetToolDescription("template_create", "short"))
	assert.Equal(t, "short", GetToolDescription("request_get", "short"))
}

func TestGetAllToolNames(t *testing.T) {
	names := GetAllToolNames()
	assert.Len(t, names, len(ToolDescriptions))
	assert.IsIncreasing(t, names)
}

func TestDescriptionsHaveUsageSection(t *testing.T) {
	for name, desc := range ToolDescriptions {
		assert.True(t, strings.Contains(desc, "**When to use:**"), name)
	}
}
