package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/repository/postgres"
)

func main() {
	dir := flag.String("dir", "migrations", "directory of .sql files")
	listOnly := flag.Bool("list", false, "list engagement tables and exit")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if *listOnly {
		if err := listTables(ctx, db); err != nil {
			logger.Error("list tables", "error", err)
			os.Exit(1)
		}
		return
	}

	files, err := migrationFiles(*dir)
	if err != nil {
		logger.Error("read migrations", "dir", *dir, "error", err)
		os.Exit(1)
	}

	var okCount, errCount int
	for _, path := range files {
		if err := apply(ctx, db, path); err != nil {
			logger.Error("migration failed", "file", filepath.Base(path), "error", err)
			errCount++
			continue
		}
		logger.Info("migration applied", "file", filepath.Base(path))
		okCount++
	}
	logger.Info("migrations complete", "ok", okCount, "errors", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

// migrationFiles returns the non-empty .sql files in dir, sorted by name.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// apply runs one file in its own transaction.
func apply(ctx context.Context, db *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func listTables(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE 'engagement_%' ORDER BY tablename")
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
	return rows.Err()
}
