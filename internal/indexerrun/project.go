package indexerrun

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/searchemu/searchemu/internal/connector"
	"github.com/searchemu/searchemu/internal/cracker"
	"github.com/searchemu/searchemu/internal/docops"
	"github.com/searchemu/searchemu/internal/enrich"
	"github.com/searchemu/searchemu/internal/schema"
)

// runState carries the per-run collaborators and mutable tracking-state
// high-water mark across one call to execute.
type runState struct {
	exec          *enrich.Executor
	conn          connector.Connector
	ds            *schema.DataSource
	skillset      *schema.Skillset
	cracks        *cracker.Registry
	idxSchema     *schema.Index
	keyFieldName  string
	fieldMappings []schema.FieldMapping

	trackingHighWater *time.Time
}

// project turns one listed source document into a docops.DocAction: read
// its content, crack it, run the skillset over the cracked fields, then
// project the enriched document onto the target index's schema via field
// mappings. Cracker and skill warnings never fail
// the document; they are returned alongside the action for the run's
// history.
func (run *runState) project(ctx context.Context, d connector.DataSourceDocument) (*docops.DocAction, []string, error) {
	content, err := run.conn.ReadContent(ctx, run.ds, d)
	if err != nil {
		return nil, nil, fmt.Errorf("read content: %w", err)
	}

	cracked := run.cracks.Crack(content, d.Name, d.ContentType, extensionOf(d.Name))
	warnings := append([]string(nil), cracked.Warnings...)

	root := enrich.NewDocument(seedFields(d, cracked))
	if run.skillset != nil {
		warnings = append(warnings, run.exec.Run(ctx, run.skillset, root)...)
	}

	target := projectFields(root, run.idxSchema, run.keyFieldName, d.Key, run.fieldMappings)
	return &docops.DocAction{Action: docops.ActionMergeOrUpload, Document: target}, warnings, nil
}

// seedFields builds the flat field set an EnrichedDocument is seeded with:
// every metadata_storage_* property the connector reported, plus the
// cracked document's own fields.
func seedFields(d connector.DataSourceDocument, cracked *cracker.CrackedDocument) map[string]interface{} {
	fields := make(map[string]interface{}, len(d.MetadataStorage)+6)
	for k, v := range d.MetadataStorage {
		fields[k] = v
	}
	fields["content"] = cracked.Content
	fields["wordCount"] = float64(cracked.WordCount)
	fields["characterCount"] = float64(cracked.CharacterCount)
	if cracked.Title != "" {
		fields["title"] = cracked.Title
	}
	if cracked.Author != "" {
		fields["author"] = cracked.Author
	}
	if cracked.Language != "" {
		fields["language"] = cracked.Language
	}
	if cracked.PageCount > 0 {
		fields["pageCount"] = float64(cracked.PageCount)
	}
	return fields
}

// projectFields applies field mappings to produce a target document
// shaped to the index schema. The key field always
// gets the document's connector key unless a mapping explicitly targets
// it. Every index field is first auto-populated from an enriched-document
// path of the same name when present (matching the upstream convention
// that cracked/enriched fields flow straight through by name), then
// explicit field mappings are applied in declaration order on top,
// honoring the one supported mapping function, "base64Encode".
func projectFields(root *enrich.Node, idxSchema *schema.Index, keyFieldName, docKey string, mappings []schema.FieldMapping) map[string]interface{} {
	target := map[string]interface{}{keyFieldName: docKey}

	for _, f := range idxSchema.Fields {
		if f.Name == keyFieldName {
			continue
		}
		if v := enrich.Get(root, "/document/"+f.Name); v.Kind != enrich.KindNull {
			target[f.Name] = v.ToGo()
		}
	}

	for _, fm := range mappings {
		val := enrich.Get(root, sourcePath(fm.SourceFieldName))
		if val.Kind == enrich.KindNull {
			continue
		}
		targetName := fm.TargetFieldName
		if targetName == "" {
			targetName = fm.SourceFieldName
		}
		out := val.ToGo()
		if fm.MappingFunction == "base64Encode" {
			if s, ok := out.(string); ok {
				out = base64.StdEncoding.EncodeToString([]byte(s))
			}
		}
		target[targetName] = out
	}

	return target
}

func sourcePath(sourceFieldName string) string {
	if len(sourceFieldName) > 0 && sourceFieldName[0] == '/' {
		return sourceFieldName
	}
	return "/document/" + sourceFieldName
}

func extensionOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
		if name[i] == '/' {
			break
		}
	}
	return ""
}
