// Package wilayahtest provides a seeded in-memory region store for tests.
package wilayahtest

import (
	"context"
	"strings"
	"testing"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/db"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// SampleDump holds three provinces, one per zone. WIB has two KOTA
// (Bandung, Banjar) and one regency, WITA has Denpasar and WIT has Sorong.
// KOTA TANPA DESA has no village and is never returned as a city. Two
// tuples are malformed.
const SampleDump = `-- region dump
CREATE TABLE ` + "`wilayah_2020`" + ` (
  ` + "`kode`" + ` varchar(13) NOT NULL,
  ` + "`nama`" + ` varchar(100) DEFAULT NULL
);

INSERT INTO ` + "`wilayah_2020` (`kode`, `nama`)" + ` VALUES
('32', 'JAWA BARAT'),
('32.04', 'KAB. BANDUNG'),
('32.04.01', 'CIWIDEY'),
('32.04.01.2001', 'PANUNDAAN'),
('32.73', 'KOTA BANDUNG'),
('32.73.01', 'SUKASARI'),
('32.73.01.1001', 'SARIJADI'),
('32.79', 'KOTA BANJAR'),
('32.79.01', 'BANJAR'),
('32.79.01.1001', 'BANJAR'),
('51', 'BALI'),
('51.71', 'KOTA DENPASAR'),
('51.71.01', 'DENPASAR SELATAN'),
('51.71.01.1001', 'SESETAN');
INSERT INTO ` + "`wilayah_2020` (`kode`, `nama`)" + ` VALUES('91', 'PAPUA BARAT'),('91.71', 'KOTA SORONG'),('91.71.01', 'SORONG'),('91.71.01.1001', 'REMU UTARA'),('91.72', NULL),('bad'),('91.73', 'KOTA TANPA DESA');
`

// SampleRows is the number of well-formed tuples in SampleDump.
const SampleRows = 19

// NewStore returns a migrated, empty region store backed by :memory:.
func NewStore(t testing.TB) *wilayah.Store {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	store := wilayah.NewStore(conn, nil)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// Seeded returns a store loaded with SampleDump.
func Seeded(t testing.TB) *wilayah.Store {
	t.Helper()
	store := NewStore(t)
	if _, err := store.Import(context.Background(), strings.NewReader(SampleDump)); err != nil {
		t.Fatalf("import sample dump: %v", err)
	}
	return store
}
