// Package connector implements component F, data-source connectors:
// a uniform {ListDocuments, ReadContent, GetDocument}
// capability registered in a type-keyed factory, grounded on the
// teacher's internal/scanner file-walking conventions.
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/searchemu/searchemu/internal/schema"
)

// DataSourceDocument describes one item a connector can list.
type DataSourceDocument struct {
	Key             string // URL-safe base64 of the storage path
	Name            string
	ContentType     string
	Size            int64
	LastModified    time.Time
	MetadataStorage map[string]interface{} // metadata_storage_* properties
}

// Connector is the capability trio every data-source type implements.
type Connector interface {
	// ListDocuments streams document metadata newer than trackingState's
	// high-water timestamp (nil/zero means "list everything").
	ListDocuments(ctx context.Context, ds *schema.DataSource, trackingState *time.Time) ([]DataSourceDocument, error)
	ReadContent(ctx context.Context, ds *schema.DataSource, doc DataSourceDocument) ([]byte, error)
	GetDocument(ctx context.Context, ds *schema.DataSource, key string) (*DataSourceDocument, error)
}

// New returns the Connector for a data source's type, chosen by a switch
// on the data-source type; an unknown type is an error.
func New(dsType schema.DataSourceType) (Connector, error) {
	switch dsType {
	case schema.DataSourceFile, schema.DataSourceAzureBlob, schema.DataSourceADLSGen2:
		// All three data-source types are backed by the same filesystem
		// connector locally: ConnectionString substitutes for an
		// account/endpoint, Container for a container/filesystem name.
		// This is enough to exercise the credential-reference vs.
		// connection-string duality without a cloud SDK.
		return &FileSystemConnector{}, nil
	default:
		return nil, fmt.Errorf("unknown data source type %q", dsType)
	}
}
