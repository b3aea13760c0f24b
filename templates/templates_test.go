package templates

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRendersIndex(t *testing.T) {
	tmpl, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = tmpl.ExecuteTemplate(&buf, "index.html", map[string]string{
		"message":  "It's running!",
		"Service":  "dbt-runner",
		"Revision": "dbt-runner-00042-abc",
	})
	require.NoError(t, err)

	body := buf.String()
	assert.Contains(t, body, "It&#39;s running!")
	assert.Contains(t, body, "dbt-runner-00042-abc")
}
