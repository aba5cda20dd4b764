// Package migrate applies the goose SQL migrations that define the bookstore
// schema. The migrations are compiled into the binary so every service runs
// against the same versions it was built with.
package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SourceDir is where new migrations are scaffolded, relative to the repo root.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the compiled-in migrations rooted at their directory.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrate: embedded migrations: %v", err))
	}
	return sub
}

var fileNamePattern = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)

// File is one parsed migration.
type File struct {
	Version int64
	Name    string
	Path    string
}

// Validate checks that every .sql file in fsys has a timestamped name, a
// unique version and both goose direction markers. It returns the files in
// version order.
func Validate(fsys fs.FS) ([]File, error) {
	paths, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	files := make([]File, 0, len(paths))
	byVersion := make(map[int64]string, len(paths))
	for _, p := range paths {
		m := fileNamePattern.FindStringSubmatch(path.Base(p))
		if m == nil {
			return nil, fmt.Errorf("migration %q: name must look like YYYYMMDDHHMMSS_snake_name.sql", p)
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if other, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("migration %q: version %d already used by %q", p, version, other)
		}
		byVersion[version] = p

		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", p, err)
		}
		if err := checkDirections(string(body)); err != nil {
			return nil, fmt.Errorf("migration %q: %w", p, err)
		}
		files = append(files, File{Version: version, Name: m[2], Path: p})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func checkDirections(body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf("missing \"-- +goose Up\"")
	case down < 0:
		return fmt.Errorf("missing \"-- +goose Down\"")
	case down < up:
		return fmt.Errorf("\"-- +goose Down\" must follow \"-- +goose Up\"")
	}
	return nil
}
