package schema

import "fmt"

// DataSourceType names the connector that reads a data source's content.
// "azureblob" and "adlsgen2" are backed by the same
// filesystem connector as "file" (ConnectionString substitutes for an
// account/endpoint, Container for a container/filesystem name), enough to
// exercise the credential-reference/connection-string duality locally
// without a real cloud SDK dependency.
type DataSourceType string

const (
	DataSourceFile      DataSourceType = "file"
	DataSourceAzureBlob DataSourceType = "azureblob"
	DataSourceADLSGen2  DataSourceType = "adlsgen2"
)

// DataSourceCredentials carries connector-specific auth. For the file
// connector this is unused; for azureblob/adlsgen2 it documents the shape
// a real credential factory would need.
type DataSourceCredentials struct {
	AccountName string `json:"accountName,omitempty"`
	AccountKey  string `json:"accountKey,omitempty"`
	SASToken    string `json:"sasToken,omitempty"`
}

// DataSource is a named, reusable connection description.
type DataSource struct {
	Name             string                `json:"name"`
	Type             DataSourceType        `json:"type"`
	ConnectionString string                `json:"connectionString"`
	Container        string                `json:"container"`
	Query            string                `json:"query,omitempty"`
	Credentials      DataSourceCredentials `json:"credentials,omitempty"`
	// ExcludedPatterns lists gitignore-syntax patterns (e.g. "*.tmp",
	// "/node_modules/") matched against each candidate document's relative
	// path; a match excludes the document from enumeration. This plays the
	// role of a real file-based data source's excludedFileNameExtensions
	// indexing parameter, generalized to full gitignore pattern syntax.
	ExcludedPatterns []string `json:"excludedPatterns,omitempty"`
}

func (d *DataSource) Validate() error {
	if !ValidName(d.Name) {
		return fmt.Errorf("invalid data source name %q", d.Name)
	}
	switch d.Type {
	case DataSourceFile, DataSourceAzureBlob, DataSourceADLSGen2:
	default:
		return fmt.Errorf("data source %q has unknown type %q", d.Name, d.Type)
	}
	if d.ConnectionString == "" {
		return fmt.Errorf("data source %q must set connectionString", d.Name)
	}
	if d.Container == "" {
		return fmt.Errorf("data source %q must set container", d.Name)
	}
	return nil
}
