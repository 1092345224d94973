// Command catalog-import loads product dumps (*.jsonl.gz, one product per
// line) into the storefront database.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/storage/postgres"
)

const (
	bloomCapacity = 100_000
	bloomFPR      = 0.001
	progressEvery = 1_000
	// maxLineSize bounds one product record.
	maxLineSize = 4 << 20
)

// dumpFile holds the products parsed from one file, in file order, and a
// filter of their ids.
type dumpFile struct {
	path     string
	products []*catalog.Product
	ids      map[int64]struct{}
	filter   *bloom.BloomFilter
}

func (f *dumpFile) has(id int64) bool {
	if !f.filter.TestString(idKey(id)) {
		return false
	}
	_, ok := f.ids[id]
	return ok
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "concurrent product upserts")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, workers); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, workers int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list dumps")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz dumps in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("parsing dumps", slog.Int("files", len(files)))
	dumps, err := parseDumps(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse dumps")
	}

	products := dedupe(dumps)
	slog.Info("products to import", slog.Int("count", len(products)))
	if len(products) == 0 {
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := postgres.NewImporter(pool)
	if err := writeProducts(ctx, im, products, workers); err != nil {
		return errors.Wrap(err, "write products")
	}
	if err := im.SyncSequences(ctx); err != nil {
		return errors.Wrap(err, "sync sequences")
	}
	return nil
}

// parseDumps reads every file concurrently.
func parseDumps(ctx context.Context, files []string) ([]*dumpFile, error) {
	dumps := make([]*dumpFile, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer func() { _ = f.Close() }()

			dump, err := parseDump(ctx, path, f)
			if err != nil {
				return err
			}
			dumps[i] = dump
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dumps, nil
}

// parseDump decodes a gzip-compressed dump. Within a file the first record
// of a product id wins.
func parseDump(ctx context.Context, path string, r io.Reader) (*dumpFile, error) {
	dump := &dumpFile{
		path:   path,
		ids:    make(map[int64]struct{}),
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}

	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		p, err := decodeProduct(data)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, line)
		}
		if _, dup := dump.ids[p.ID]; dup {
			slog.Warn("duplicate product in dump", slog.String("file", path), slog.Int64("id", p.ID))
			continue
		}
		dump.ids[p.ID] = struct{}{}
		dump.filter.AddString(idKey(p.ID))
		dump.products = append(dump.products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("dump parsed", slog.String("file", path), slog.Int("products", len(dump.products)))
	return dump, nil
}

// dedupe merges dumps in file order; a product already seen in an earlier
// file is skipped.
func dedupe(dumps []*dumpFile) []*catalog.Product {
	var out []*catalog.Product
	for i, dump := range dumps {
	next:
		for _, p := range dump.products {
			for _, earlier := range dumps[:i] {
				if earlier.has(p.ID) {
					slog.Warn("product already imported from another dump",
						slog.Int64("id", p.ID),
						slog.String("file", dump.path),
						slog.String("first", earlier.path),
					)
					continue next
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// writeProducts upserts products with bounded concurrency.
func writeProducts(ctx context.Context, im *postgres.Importer, products []*catalog.Product, workers int) error {
	slog.Info("writing products to database", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, p := range products {
		g.Go(func() error {
			if err := im.UpsertProduct(ctx, p); err != nil {
				return err
			}
			if (i+1)%progressEvery == 0 {
				slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(products)))
			}
			return nil
		})
	}
	return g.Wait()
}
