package wilayah

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

//go:embed sql/schema.sql
var schemaSQL string

const (
	importBatchSize     = 1000
	importProgressEvery = 10000
)

// cityColumns selects a city-level unit plus its first village-level
// descendant, which is the code the forecast API accepts.
const cityColumns = `
SELECT c.kode, c.nama,
       (SELECT v.kode FROM wilayah v
         WHERE v.kode LIKE c.kode || '.%' AND LENGTH(v.kode) >= 13
         ORDER BY v.kode LIMIT 1) AS leaf
FROM wilayah c
WHERE LENGTH(c.kode) = 5
  AND CAST(SUBSTR(c.kode, 4, 2) AS INTEGER) >= 71`

const (
	kotaOnly     = ` AND c.nama LIKE 'KOTA %'`
	kotaOrKab    = ` AND (c.nama LIKE 'KOTA %' OR c.nama LIKE 'KAB. %')`
	orderByName  = ` ORDER BY c.nama`
	insertRowSQL = `INSERT OR IGNORE INTO wilayah (kode, nama) VALUES (?, ?)`
)

// Store is the region lookup table. It is read-only after import, so
// concurrent reads are safe.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu        sync.RWMutex
	zoneCache map[Zone][]City
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Parsed   int // well-formed tuples in the dump
	Inserted int // rows that were new to the table
	Skipped  int // malformed tuples
}

// Stats holds row counts per administrative level.
type Stats struct {
	Total     int          `json:"total"`
	Provinces int          `json:"provinces"`
	Cities    int          `json:"cities"` // city and regency level
	Kota      int          `json:"kota"`
	Districts int          `json:"districts"`
	Villages  int          `json:"villages"`
	ByZone    map[Zone]int `json:"by_zone"`
}

// NewStore wraps an open database. Call Migrate before first use.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		logger:    logging.Component(logger, "wilayah"),
		zoneCache: make(map[Zone][]City),
	}
}

// Migrate creates the region table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create region schema: %w", err)
	}
	return nil
}

// Count returns the number of stored units. Errors count as zero.
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wilayah`).Scan(&n); err != nil {
		s.logger.Error("count failed", "error", err)
		return 0
	}
	return n
}

// ImportFile imports a dump file. Re-importing the same dump inserts nothing.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()

	s.logger.Info("importing region dump", "path", path)
	return s.Import(ctx, f)
}

// Import parses a dump and inserts its tuples in batches, committing after
// each batch.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var (
		result ImportResult
		batch  = make([]Row, 0, importBatchSize)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.insertBatch(ctx, batch)
		if err != nil {
			return err
		}
		before := result.Inserted
		result.Inserted += n
		if before/importProgressEvery != result.Inserted/importProgressEvery {
			s.logger.Info("import progress", "inserted", result.Inserted)
		}
		batch = batch[:0]
		return nil
	}

	stats, err := ParseDump(r, func(row Row) error {
		batch = append(batch, row)
		if len(batch) >= importBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	result.Parsed = stats.Rows
	result.Skipped = stats.Skipped
	if err != nil {
		return result, fmt.Errorf("failed to import dump: %w", err)
	}

	s.mu.Lock()
	s.zoneCache = make(map[Zone][]City)
	s.mu.Unlock()

	s.logger.Info("import finished",
		"statements", stats.Statements,
		"parsed", result.Parsed,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *Store) insertBatch(ctx context.Context, rows []Row) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertRowSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, row.Code, row.Name)
		if err != nil {
			s.logger.Warn("skipping row", "code", row.Code, "error", err)
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// CitiesByTimezone returns the KOTA-level cities of every province in zone.
func (s *Store) CitiesByTimezone(ctx context.Context, zone Zone) []City {
	s.mu.RLock()
	cached, ok := s.zoneCache[zone]
	s.mu.RUnlock()
	if ok {
		return append([]City(nil), cached...)
	}

	var out []City
	for _, province := range ProvincesIn(zone) {
		cities, err := s.queryCities(ctx, cityColumns+` AND c.kode LIKE ?`+kotaOnly+orderByName, province+".%")
		if err != nil {
			s.logger.Error("cities by timezone failed", "zone", zone, "province", province, "error", err)
			return nil
		}
		out = append(out, cities...)
	}

	s.mu.Lock()
	s.zoneCache[zone] = out
	s.mu.Unlock()
	return append([]City(nil), out...)
}

// CityByName returns the first KOTA whose name contains query, ignoring
// case. It is a substring match, not a ranked best match.
func (s *Store) CityByName(ctx context.Context, query string) *City {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	cities, err := s.queryCities(ctx,
		cityColumns+kotaOnly+` AND UPPER(c.nama) LIKE UPPER(?) ORDER BY c.kode LIMIT 1`,
		"%"+query+"%")
	if err != nil {
		s.logger.Error("city by name failed", "query", query, "error", err)
		return nil
	}
	if len(cities) == 0 {
		return nil
	}
	return &cities[0]
}

// CitiesByKeyword returns cities and regencies whose name contains keyword,
// ordered by name and capped at limit.
func (s *Store) CitiesByKeyword(ctx context.Context, keyword string, limit int) []City {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || limit <= 0 {
		return nil
	}
	cities, err := s.queryCities(ctx,
		cityColumns+kotaOrKab+` AND UPPER(c.nama) LIKE UPPER(?)`+orderByName+` LIMIT ?`,
		"%"+keyword+"%", limit)
	if err != nil {
		s.logger.Error("cities by keyword failed", "keyword", keyword, "error", err)
		return nil
	}
	return cities
}

// AllProvinces returns every province ordered by name.
func (s *Store) AllProvinces(ctx context.Context) []Unit {
	rows, err := s.db.QueryContext(ctx, `SELECT kode, nama FROM wilayah WHERE LENGTH(kode) = 2 ORDER BY nama`)
	if err != nil {
		s.logger.Error("all provinces failed", "error", err)
		return nil
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("rows close", "error", err)
		}
	}()

	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.Code, &u.Name); err != nil {
			s.logger.Error("scan province", "error", err)
			return nil
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("iterate provinces", "error", err)
		return nil
	}
	return out
}

// CitiesByProvince returns the cities and regencies under a province code.
func (s *Store) CitiesByProvince(ctx context.Context, provinceCode string) []City {
	provinceCode = strings.TrimSpace(provinceCode)
	if len(provinceCode) != provinceCodeLen {
		return nil
	}
	cities, err := s.queryCities(ctx, cityColumns+` AND c.kode LIKE ?`+kotaOrKab+orderByName, provinceCode+".%")
	if err != nil {
		s.logger.Error("cities by province failed", "province", provinceCode, "error", err)
		return nil
	}
	return cities
}

// RandomCities samples up to count distinct cities from zone, or from all
// three zones when zone is empty. A pool no larger than count is returned
// whole.
func (s *Store) RandomCities(ctx context.Context, count int, zone Zone) []City {
	if count <= 0 {
		return nil
	}
	var pool []City
	if zone == "" {
		for _, z := range Zones {
			pool = append(pool, s.CitiesByTimezone(ctx, z)...)
		}
	} else {
		pool = s.CitiesByTimezone(ctx, zone)
	}
	if len(pool) <= count {
		return pool
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:count]
}

// Stats counts units per level and KOTA cities per zone.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByZone: make(map[Zone]int)}
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(LENGTH(kode) = 2), 0),
       COALESCE(SUM(LENGTH(kode) = 5), 0),
       COALESCE(SUM(LENGTH(kode) = 5 AND nama LIKE 'KOTA %'), 0),
       COALESCE(SUM(LENGTH(kode) = 8), 0),
       COALESCE(SUM(LENGTH(kode) >= 13), 0)
FROM wilayah`).Scan(&st.Total, &st.Provinces, &st.Cities, &st.Kota, &st.Districts, &st.Villages)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count regions: %w", err)
	}
	for _, z := range Zones {
		st.ByZone[z] = len(s.CitiesByTimezone(ctx, z))
	}
	return st, nil
}

func (s *Store) queryCities(ctx context.Context, query string, args ...any) ([]City, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("rows close", "error", err)
		}
	}()

	var out []City
	for rows.Next() {
		var (
			code, name string
			leaf       sql.NullString
		)
		if err := rows.Scan(&code, &name, &leaf); err != nil {
			return nil, err
		}
		if !leaf.Valid {
			// No village below this unit, so the forecast API cannot serve it.
			continue
		}
		out = append(out, newCity(name, leaf.String))
	}
	return out, rows.Err()
}

// ErrNoRegions is returned by EnsureImported when the table is empty and no
// dump is available.
var ErrNoRegions = errors.New("region database is empty and no dump file is available")

// EnsureImported migrates the schema and imports dumpPath when the table is
// empty. A populated table is left untouched.
func (s *Store) EnsureImported(ctx context.Context, dumpPath string) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if n := s.Count(ctx); n > 0 {
		s.logger.Debug("region database ready", "rows", n)
		return nil
	}
	if _, err := os.Stat(dumpPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoRegions, dumpPath)
	}
	res, err := s.ImportFile(ctx, dumpPath)
	if err != nil {
		return err
	}
	if res.Inserted == 0 {
		return fmt.Errorf("%w: %s contained no rows", ErrNoRegions, dumpPath)
	}
	return nil
}
