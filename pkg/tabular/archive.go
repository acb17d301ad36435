// pkg/tabular/archive.go
package tabular

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// ArchiveFile is one dataset packed into an archive under Name
type ArchiveFile struct {
	Name    string
	Dataset *model.Dataset
}

// WriteArchive zips several datasets, each serialized in its own format
func WriteArchive(w io.Writer, files []ArchiveFile, modified time.Time) error {
	zw := zip.NewWriter(w)

	for _, file := range files {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", file.Name, err)
		}
		if err := Write(entry, file.Dataset); err != nil {
			return fmt.Errorf("failed to write %s to archive: %w", file.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}
