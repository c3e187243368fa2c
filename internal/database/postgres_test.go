package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vladimiradmaev/wellnest/internal/store"
)

// dryRunDB renders statements for the postgres dialect without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=wellnest dbname=wellnest sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func findSQL(t *testing.T, q store.Query) string {
	t.Helper()
	db := dryRunDB(t)
	return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []DocumentRow
		return NewGormStore(tx).findQuery(context.Background(), "glucose_logs", q).Find(&rows)
	})
}

func TestGormFindQuery(t *testing.T) {
	at := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)
	from, to := at.Add(-30*time.Minute), at.Add(30*time.Minute)

	tests := []struct {
		name    string
		q       store.Query
		want    []string
		notWant []string
	}{
		{
			name: "exact instant",
			q:    store.Query{OwnerID: "u1", At: &at, Limit: 1},
			want: []string{
				"collection = 'glucose_logs'",
				"owner_id = 'u1'",
				"timestamp = '2024-03-10 02:30:00'",
				"ORDER BY timestamp DESC, id DESC",
				"LIMIT 1",
			},
			notWant: []string{"timestamp >=", "timestamp <="},
		},
		{
			name: "inclusive range",
			q:    store.Query{OwnerID: "u1", From: &from, To: &to},
			want: []string{
				"timestamp >= '2024-03-10 02:00:00'",
				"timestamp <= '2024-03-10 03:00:00'",
				"ORDER BY timestamp DESC, id DESC",
			},
			notWant: []string{"LIMIT"},
		},
		{
			name: "descending page after cursor",
			q:    store.Query{OwnerID: "u1", Limit: 10, After: &store.Cursor{Timestamp: at, ID: "cgm_u1_20240310_023000"}},
			want: []string{
				"timestamp < '2024-03-10 02:30:00' OR (timestamp = '2024-03-10 02:30:00' AND id < 'cgm_u1_20240310_023000')",
				"LIMIT 10",
			},
		},
		{
			name: "ascending page after cursor",
			q:    store.Query{Order: store.Ascending, After: &store.Cursor{Timestamp: at, ID: "cgm_u1_20240310_023000"}},
			want: []string{
				"timestamp > '2024-03-10 02:30:00' OR (timestamp = '2024-03-10 02:30:00' AND id > 'cgm_u1_20240310_023000')",
				"ORDER BY timestamp ASC, id ASC",
			},
			notWant: []string{"owner_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := findSQL(t, tt.q)
			for _, w := range tt.want {
				if !strings.Contains(sql, w) {
					t.Errorf("sql missing %q:\n%s", w, sql)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(sql, w) {
					t.Errorf("sql has unexpected %q:\n%s", w, sql)
				}
			}
		})
	}
}
