package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateJobName(t *testing.T) {
	name := GenerateJobName("dbt-source")
	assert.True(t, strings.HasPrefix(name, "dbt-source-"), name)
	assert.True(t, IsValidKubernetesName(name), name)

	long := GenerateJobName(strings.Repeat("Model_", 20))
	assert.True(t, IsValidKubernetesName(long), long)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "dbt-source-freshness", SanitizeName("DBT source_freshness"))
	assert.Equal(t, "run-operation", SanitizeName("run-operation"))
	assert.Equal(t, "job", SanitizeName("--"))
}

func TestIsValidKubernetesName(t *testing.T) {
	assert.True(t, IsValidKubernetesName("dbt-build-x7k9m2p1-1640995200"))
	assert.False(t, IsValidKubernetesName(""))
	assert.False(t, IsValidKubernetesName("-dbt"))
	assert.False(t, IsValidKubernetesName("Dbt"))
	assert.False(t, IsValidKubernetesName(strings.Repeat("a", 64)))
}

func TestHashAPIKey(t *testing.T) {
	key, err := GenerateAPIKey(32)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	hashed, err := HashAPIKey(key)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte(key)))

	_, err = HashAPIKey("")
	assert.Error(t, err)
}
