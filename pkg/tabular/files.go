// pkg/tabular/files.go
package tabular

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/audit"
	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// FileCollector reads datasets from paths on disk
type FileCollector struct {
	Paths   []string
	Allowed []string // allowed extensions; empty accepts every supported format
}

// Collect reads every path in order. Every extension is checked before any file is parsed.
func (c FileCollector) Collect(ctx context.Context) ([]*model.Dataset, error) {
	if len(c.Paths) == 0 {
		return nil, fmt.Errorf("no input files given")
	}
	for _, path := range c.Paths {
		if err := CheckAllowed(path, c.Allowed); err != nil {
			return nil, err
		}
	}

	datasets := make([]*model.Dataset, 0, len(c.Paths))
	for _, path := range c.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := Open(path)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// FileEmitter writes anonymized datasets and the audit report into Dir.
// One dataset is written as Anonymized_<ts>_<name>; several are zipped into
// Anonymized_<ts>_batch.zip. The report is written as log_<ts>_<name>.txt.
type FileEmitter struct {
	Dir    string
	Logger *zap.Logger
}

// NewFileEmitter creates an emitter writing into dir, creating it if needed
func NewFileEmitter(dir string, logger *zap.Logger) (*FileEmitter, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileEmitter{Dir: dir, Logger: logger}, nil
}

// Emit writes the artifacts and returns their base names, output first then report.
// Nothing is left behind in Dir when an artifact fails to write.
func (e *FileEmitter) Emit(ctx context.Context, datasets []*model.Dataset, record *model.AuditRecord) ([]string, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no datasets to emit")
	}

	var written []string
	cleanup := func() {
		for _, name := range written {
			if err := os.Remove(filepath.Join(e.Dir, name)); err != nil && !os.IsNotExist(err) {
				e.Logger.Warn("Failed to remove partial artifact", zap.String("file", name), zap.Error(err))
			}
		}
	}

	outputName := OutputName(datasets[0].Name, record.Timestamp)
	writeOutput := func(f *os.File) error { return Write(f, datasets[0]) }
	if len(datasets) > 1 {
		outputName = ArchiveName(record.Timestamp)
		entryNames := make([]string, len(datasets))
		for i, ds := range datasets {
			entryNames[i] = OutputName(ds.Name, record.Timestamp)
		}
		entryNames = UniqueNames(entryNames)
		files := make([]ArchiveFile, len(datasets))
		for i, ds := range datasets {
			files[i] = ArchiveFile{Name: entryNames[i], Dataset: ds}
		}
		writeOutput = func(f *os.File) error { return WriteArchive(f, files, record.Timestamp) }
	}

	if err := e.writeAtomic(outputName, writeOutput); err != nil {
		return nil, err
	}
	written = append(written, outputName)

	if err := ctx.Err(); err != nil {
		cleanup()
		return nil, err
	}

	logName := audit.LogName(record.SourceFiles, record.Timestamp)
	if err := e.writeAtomic(logName, func(f *os.File) error { return audit.WriteReport(f, record) }); err != nil {
		cleanup()
		return nil, err
	}
	written = append(written, logName)

	e.Logger.Info("Wrote anonymization artifacts",
		zap.String("output", outputName),
		zap.String("log", logName),
		zap.String("dir", e.Dir))

	return written, nil
}

// writeAtomic writes to a temporary file in Dir and renames it into place
func (e *FileEmitter) writeAtomic(name string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(e.Dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(e.Dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

// UniqueNames returns names in order with repeats suffixed _2, _3, ... before
// the extension. A generated name never collides with another given name.
func UniqueNames(names []string) []string {
	given := make(map[string]bool, len(names))
	for _, name := range names {
		given[name] = true
	}

	used := make(map[string]bool, len(names))
	unique := make([]string, len(names))
	for i, name := range names {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)

		candidate := name
		for n := 2; used[candidate] || (candidate != name && given[candidate]); n++ {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		used[candidate] = true
		unique[i] = candidate
	}
	return unique
}
