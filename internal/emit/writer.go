package emit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/metrics"
)

// Format is an artifact encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatJSON: "application/json",
}

// WriterConfig controls artifact layout and notifications.
type WriterConfig struct {
	// Prefix is prepended to every artifact path.
	Prefix string
	// Formats lists the encodings written for each table. Defaults to CSV.
	Formats []Format
	// Topic receives one notification per artifact when a Publisher is set.
	Topic string
	// PartitionDir holds the per-term people tables.
	PartitionDir string
}

// Artifact describes one written table. It is also the notification
// payload.
type Artifact struct {
	RunID     string    `json:"run_id"`
	Table     string    `json:"table"`
	Format    Format    `json:"format"`
	Path      string    `json:"path"`
	URI       string    `json:"uri"`
	SHA256    string    `json:"sha256"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
	MessageID string    `json:"-"`
}

// Writer serializes tables through a BlobStore.
type Writer struct {
	store     crawler.BlobStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	cfg       WriterConfig
	logger    *zap.Logger
}

// NewWriter wires a Writer. publisher may be nil.
func NewWriter(
	store crawler.BlobStore,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	cfg WriterConfig,
	logger *zap.Logger,
) *Writer {
	if len(cfg.Formats) == 0 {
		cfg.Formats = []Format{FormatCSV}
	}
	if cfg.PartitionDir == "" {
		cfg.PartitionDir = "parliaments"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:     store,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("emit"),
	}
}

// WriteAll writes every table in every configured format. A people table
// with a term column is additionally partitioned by term.
func (w *Writer) WriteAll(ctx context.Context, runID string, tables []Table) ([]Artifact, error) {
	var out []Artifact
	for _, t := range tables {
		arts, err := w.Write(ctx, runID, "", t)
		if err != nil {
			return out, err
		}
		out = append(out, arts...)

		if t.Kind != crawler.KindPerson {
			continue
		}
		perTerm, combined, ok := Partition(t)
		if !ok {
			continue
		}
		for _, p := range append(perTerm, combined) {
			arts, err := w.Write(ctx, runID, w.cfg.PartitionDir, p)
			if err != nil {
				return out, err
			}
			out = append(out, arts...)
		}
	}
	return out, nil
}

// Write encodes one table in every configured format under dir.
func (w *Writer) Write(ctx context.Context, runID, dir string, t Table) ([]Artifact, error) {
	out := make([]Artifact, 0, len(w.cfg.Formats))
	for _, f := range w.cfg.Formats {
		art, err := w.write(ctx, runID, dir, t, f)
		if err != nil {
			return out, err
		}
		out = append(out, art)
	}
	return out, nil
}

func (w *Writer) write(ctx context.Context, runID, dir string, t Table, f Format) (Artifact, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatCSV:
		data, err = EncodeCSV(t)
	case FormatJSON:
		data, err = EncodeJSON(t)
	default:
		return Artifact{}, fmt.Errorf("unsupported format %q", f)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("encode %s: %w", t.Name, err)
	}

	digest, err := w.hasher.Hash(data)
	if err != nil {
		return Artifact{}, fmt.Errorf("hash %s: %w", t.Name, err)
	}
	name := path.Join(w.cfg.Prefix, runID, dir, t.Name+"."+string(f))
	uri, err := w.store.PutObject(ctx, name, contentTypes[f], bytes.NewReader(data))
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", name, err)
	}
	metrics.ObserveArtifact()

	art := Artifact{
		RunID:     runID,
		Table:     t.Name,
		Format:    f,
		Path:      name,
		URI:       uri,
		SHA256:    digest,
		Rows:      t.Len(),
		CreatedAt: w.clock.Now(),
	}
	w.logger.Info("Artifact written",
		zap.String("run_id", runID),
		zap.String("uri", uri),
		zap.Int("rows", art.Rows),
	)

	if w.publisher != nil && w.cfg.Topic != "" {
		id, err := w.publisher.Publish(ctx, w.cfg.Topic, art)
		if err != nil {
			return art, fmt.Errorf("publish %s: %w", name, err)
		}
		art.MessageID = id
	}
	return art, nil
}

// EncodeCSV writes a header row followed by every row.
func EncodeCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJSON writes the table as an array of objects keyed by column.
func EncodeJSON(t Table) ([]byte, error) {
	rows := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		obj := make(map[string]string, len(t.Columns))
		for j, c := range t.Columns {
			obj[c] = row[j]
		}
		rows[i] = obj
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}
	return data, nil
}
