package table

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/google/uuid"

	"bids-indexer/internal/logging"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/schema"
)

// DefaultPartSize is the number of buffered rows that triggers a new
// parquet part file.
const DefaultPartSize = 50000

// ParquetSink writes rows as parquet part files into one directory.
// Each part is written to a temp file and renamed into place, so an
// interrupted run never leaves a readable partial part. Part files are
// named <unixnano>-<uuid>.parquet; readers take the directory as one
// logical table.
type ParquetSink struct {
	dir      string
	entities []string
	schema   *arrow.Schema
	builder  *array.RecordBuilder
	buffered int
	partSize int
	closed   bool
}

// NewParquetSink prepares the arrow schema and output directory. The
// column layout is dataset identity, one utf8 column per canonical
// entity, datatype/suffix/ext, merged metadata as a JSON string, then
// root/path/size/mtime file info.
func NewParquetSink(dir string, ix *schema.Index, partSize int) (*ParquetSink, error) {
	keys := ix.Canonical()
	if err := checkEntityColumns(keys); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	if partSize <= 0 {
		partSize = DefaultPartSize
	}

	fields := []arrow.Field{
		{Name: "dataset_id", Type: arrow.BinaryTypes.String},
		{Name: "dataset_name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "dataset_type", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	for _, k := range keys {
		fields = append(fields, arrow.Field{Name: k, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	fields = append(fields,
		arrow.Field{Name: "datatype", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "suffix", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "ext", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "meta", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "root", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "path", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "size", Type: arrow.PrimitiveTypes.Int64},
		arrow.Field{Name: "mtime", Type: arrow.FixedWidthTypes.Timestamp_ns},
	)

	s := &ParquetSink{
		dir:      dir,
		entities: keys,
		schema:   arrow.NewSchema(fields, nil),
		partSize: partSize,
	}
	s.builder = array.NewRecordBuilder(memory.NewGoAllocator(), s.schema)
	return s, nil
}

// ClearParts removes the part files of an existing parquet table so a
// full rebuild does not duplicate keys across old and new parts. Other
// files in the directory, the snapshot manifest included, are left
// alone. A missing directory is not an error.
func ClearParts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list parquet parts in %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove stale part %s: %w", e.Name(), err)
		}
	}
	return nil
}

// WriteRows buffers rows into the record builder, cutting a part file
// whenever the buffer reaches the part size.
func (s *ParquetSink) WriteRows(ctx context.Context, rows []Row) error {
	if s.closed {
		return fmt.Errorf("parquet sink is closed")
	}
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.appendRow(r); err != nil {
			return err
		}
		s.buffered++
		if s.buffered >= s.partSize {
			if err := s.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes any buffered rows into a final part file and releases
// the builder.
func (s *ParquetSink) Close() error {
	if s.closed {
		return nil
	}
	err := s.flush()
	s.builder.Release()
	s.closed = true
	return err
}

func (s *ParquetSink) appendRow(r Row) error {
	meta, err := EncodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("row %s: %w", r.Key(), err)
	}

	col := 0
	str := func(v string, nullable bool) {
		b := s.builder.Field(col).(*array.StringBuilder)
		if v == "" && nullable {
			b.AppendNull()
		} else {
			b.Append(v)
		}
		col++
	}

	str(r.DatasetID, false)
	str(r.DatasetName, true)
	str(r.DatasetType, true)
	for _, k := range s.entities {
		str(r.Entities[k], true)
	}
	str(r.Datatype, true)
	str(r.Suffix, false)
	str(r.Extension, false)
	str(meta, true)
	str(r.DatasetRoot, false)
	str(r.RelativePath, false)
	s.builder.Field(col).(*array.Int64Builder).Append(r.Size)
	col++
	s.builder.Field(col).(*array.TimestampBuilder).Append(arrow.Timestamp(r.ModTime.UnixNano()))
	return nil
}

func (s *ParquetSink) flush() error {
	if s.buffered == 0 {
		return nil
	}
	record := s.builder.NewRecord()
	defer record.Release()

	name := fmt.Sprintf("%d-%s.parquet", time.Now().UnixNano(), uuid.New().String())
	tmp := filepath.Join(s.dir, name+".tmp")

	start := time.Now()
	if err := s.writePart(tmp, record); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize part %s: %w", name, err)
	}

	metrics.SinkRowsWritten.WithLabelValues("parquet").Add(float64(s.buffered))
	metrics.SinkBatchesWritten.WithLabelValues("parquet").Inc()
	metrics.SinkWriteDuration.WithLabelValues("parquet").Observe(time.Since(start).Seconds())
	logging.Debug("Wrote parquet part %s: %d rows in %v", name, s.buffered, time.Since(start).Round(time.Millisecond))
	s.buffered = 0
	return nil
}

func (s *ParquetSink) writePart(path string, record arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create part file: %w", err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	writer, err := pqarrow.NewFileWriter(s.schema, f, props, pqarrow.NewArrowWriterProperties())
	if err != nil {
		return fmt.Errorf("open parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("write parquet part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet part: %w", err)
	}
	return nil
}
