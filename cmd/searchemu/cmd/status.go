package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/searchemu/searchemu/internal/config"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/ui"
)

func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var configPath string
	var dataDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about every index in the data directory:
  - Document counts
  - Storage sizes (metadata, text index, vectors)
  - Any indexer targeting the index, and its skillset/scheduler state`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, configPath, dataDir, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override data_directory")

	return cmd
}

func runStatus(cmd *cobra.Command, configPath, dataDirOverride string, jsonOutput bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDirOverride != "" {
		cfg.DataDirectory = dataDirOverride
	}

	metadataPath := filepath.Join(cfg.DataDirectory, "metadata.db")
	if _, err := os.Stat(metadataPath); err != nil {
		return fmt.Errorf("no data directory found at %s\nRun 'searchemu serve' to create one", cfg.DataDirectory)
	}

	store, err := metadata.Open(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	texts := textindex.NewManager(cfg.DataDirectory)

	infos, err := collectStatus(cmd.Context(), store, texts, cfg.DataDirectory)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	noColor := ui.DetectNoColor()
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)

	if len(infos) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no indexes found")
		return nil
	}

	for _, info := range infos {
		if jsonOutput {
			if err := renderer.RenderJSON(info); err != nil {
				return err
			}
			continue
		}
		if err := renderer.Render(info); err != nil {
			return err
		}
	}
	return nil
}

// collectStatus builds one StatusInfo per index in the store, joined
// against any indexer that targets it.
func collectStatus(_ context.Context, store *metadata.Store, texts *textindex.Manager, dataDir string) ([]ui.StatusInfo, error) {
	indexRecords, err := store.List(metadata.KindIndex)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	indexerByTarget := make(map[string]schema.Indexer)
	indexerRecords, err := store.List(metadata.KindIndexer)
	if err != nil {
		return nil, fmt.Errorf("list indexers: %w", err)
	}
	for _, rec := range indexerRecords {
		var ix schema.Indexer
		if err := decodeJSON(rec.Bytes, &ix); err != nil {
			continue
		}
		indexerByTarget[ix.TargetIndexName] = ix
	}

	infos := make([]ui.StatusInfo, 0, len(indexRecords))
	for _, rec := range indexRecords {
		var idxSchema schema.Index
		if err := decodeJSON(rec.Bytes, &idxSchema); err != nil {
			continue
		}

		info := ui.StatusInfo{IndexName: rec.Name, SchedulerState: "n/a"}

		if idx, err := texts.Open(rec.Name, &idxSchema); err == nil {
			if count, err := idx.DocCount(); err == nil {
				info.TotalDocuments = int(count)
			}
		}

		info.MetadataSize = getFileSize(filepath.Join(dataDir, "metadata.db"))
		info.TextSize = getDirSize(filepath.Join(dataDir, rec.Name, "bleve"))
		info.VectorSize = getFileSize(filepath.Join(dataDir, rec.Name, "vectors.gob"))
		info.TotalSize = info.MetadataSize + info.TextSize + info.VectorSize

		if ix, ok := indexerByTarget[rec.Name]; ok {
			if ix.SkillsetName != "" {
				info.SkillsetName = ix.SkillsetName
				if _, _, exists, _ := store.Get(metadata.KindSkillset, ix.SkillsetName); exists {
					info.SkillsetStatus = "ready"
				} else {
					info.SkillsetStatus = "error"
				}
			}
			if stateBytes, _, exists, _ := store.Get(metadata.KindIndexerState, ix.Name); exists {
				var st schema.IndexerState
				if err := decodeJSON(stateBytes, &st); err == nil {
					switch st.Status {
					case schema.IndexerStatusInProgress:
						info.SchedulerState = "running"
					case schema.IndexerStatusIdle, schema.IndexerStatusSuccess, schema.IndexerStatusTransientFailure, schema.IndexerStatusReset:
						info.SchedulerState = "stopped"
					}
				}
			}
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// getFileSize returns the size of a file in bytes, or 0 if it doesn't exist.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files under path.
func getDirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
