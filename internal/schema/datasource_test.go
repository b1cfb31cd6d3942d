package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourceValidateAccepts(t *testing.T) {
	ds := &DataSource{
		Name:             "local-docs",
		Type:             DataSourceFile,
		ConnectionString: "/data/corpus",
		Container:        "docs",
	}
	require.NoError(t, ds.Validate())
}

func TestDataSourceValidateRejectsMissingFields(t *testing.T) {
	ds := &DataSource{Name: "local-docs", Type: DataSourceFile}
	assert.Error(t, ds.Validate())

	ds = &DataSource{Name: "local-docs", Type: "bogus", ConnectionString: "x", Container: "y"}
	assert.Error(t, ds.Validate())
}
