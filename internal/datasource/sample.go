package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

// DefaultSamplePath is the SQLite file used when no DSN is configured.
var DefaultSamplePath = filepath.Join("data", "sample.db")

var sampleDDL = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		employee_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL,
		salary REAL NOT NULL,
		hire_date TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		price REAL NOT NULL,
		stock INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		sale_id INTEGER PRIMARY KEY,
		product_id INTEGER,
		employee_id INTEGER,
		sale_date TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		total_amount REAL NOT NULL,
		region TEXT NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products (product_id),
		FOREIGN KEY (employee_id) REFERENCES employees (employee_id)
	)`,
}

var sampleEmployees = []struct {
	name, dept string
	salary     float64
	hired      string
}{
	{"Alice Martin", "Sales", 62000, "2018-03-12"},
	{"Bruno Costa", "Sales", 58000, "2019-07-01"},
	{"Chloe Nguyen", "Engineering", 98000, "2017-11-20"},
	{"David Okafor", "Engineering", 105000, "2016-05-09"},
	{"Elena Rossi", "Marketing", 71000, "2020-01-15"},
	{"Farid Haddad", "Sales", 54000, "2021-09-30"},
	{"Grace Kim", "Finance", 83000, "2015-02-23"},
	{"Hugo Laurent", "Marketing", 67000, "2022-04-04"},
	{"Ines Duarte", "Engineering", 91000, "2019-10-17"},
	{"Jonas Weber", "Finance", 79000, "2020-06-08"},
}

var sampleProducts = []struct {
	name, category string
	price          float64
	stock          int
}{
	{"Laptop Pro 14", "Electronics", 1499.00, 35},
	{"Wireless Mouse", "Electronics", 29.90, 420},
	{"Noise Cancelling Headphones", "Electronics", 249.00, 120},
	{"Standing Desk", "Furniture", 549.00, 40},
	{"Ergonomic Chair", "Furniture", 329.00, 65},
	{"Notebook A5", "Stationery", 4.50, 1500},
	{"Fountain Pen", "Stationery", 39.00, 300},
	{"Coffee Beans 1kg", "Grocery", 18.75, 800},
}

var sampleRegions = []string{"North", "South", "East", "West"}

// CreateSample creates the demo SQLite database at path if its tables are
// missing. With seed it also inserts deterministic demo rows into empty tables.
func CreateSample(ctx context.Context, path string, seed bool) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sample db: %w", err)
	}
	defer db.Close()
	for _, stmt := range sampleDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create sample schema: %w", err)
		}
	}
	if !seed {
		return nil
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n); err != nil {
		return fmt.Errorf("count sales: %w", err)
	}
	if n > 0 {
		return nil
	}
	return seedSample(ctx, db)
}

func seedSample(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for i, e := range sampleEmployees {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO employees (employee_id, name, department, salary, hire_date) VALUES (?, ?, ?, ?, ?)`,
			i+1, e.name, e.dept, e.salary, e.hired); err != nil {
			return fmt.Errorf("seed employees: %w", err)
		}
	}
	for i, p := range sampleProducts {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO products (product_id, name, category, price, stock) VALUES (?, ?, ?, ?, ?)`,
			i+1, p.name, p.category, p.price, p.stock); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}
	rng := rand.New(rand.NewPCG(2024, 1))
	day0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := 1; id <= 240; id++ {
		p := rng.IntN(len(sampleProducts))
		qty := 1 + rng.IntN(5)
		// sales staff carry most of the volume
		emp := []int{1, 2, 6}[rng.IntN(3)]
		if rng.IntN(5) == 0 {
			emp = 1 + rng.IntN(len(sampleEmployees))
		}
		date := day0.AddDate(0, 0, rng.IntN(365)).Format("2006-01-02")
		total := float64(qty) * sampleProducts[p].price
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO sales (sale_id, product_id, employee_id, sale_date, quantity, total_amount, region) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, p+1, emp, date, qty, total, sampleRegions[rng.IntN(len(sampleRegions))]); err != nil {
			return fmt.Errorf("seed sales: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
