// Package datasetdb persists generated recordings and sortings in sqlite.
// Only the generation parameters are stored; loading a dataset rebuilds the
// object through the extractor registry, so traces never touch disk.
package datasetdb

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rory-bedford/spikeinterface/extractor"
)

type DatasetDB struct {
	*sql.DB
}

// schema.sql creates the datasets table holding one JSON parameter blob per
// saved recording or sorting.
//
//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) the dataset database at path and applies
// the schema.
func Open(path string) (*DatasetDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(schemaSQL)
	if err != nil {
		return nil, err
	}

	log.Println("initialized dataset database schema")

	return &DatasetDB{db}, nil
}

// Entry describes one saved dataset row without its parameter payload.
type Entry struct {
	ID           string
	Name         string
	Kind         string // "recording" or "sorting"
	CreatedUnixN int64
}

// SaveRecording stores the recording's parameter dict under a fresh UUID
// and returns the new id.
func (ddb *DatasetDB) SaveRecording(name string, rec extractor.Recording) (string, error) {
	dict, err := rec.ToDict()
	if err != nil {
		return "", err
	}
	return ddb.save(name, "recording", dict)
}

// SaveSorting stores the sorting's parameter dict under a fresh UUID and
// returns the new id.
func (ddb *DatasetDB) SaveSorting(name string, sorting extractor.Sorting) (string, error) {
	dict, err := sorting.ToDict()
	if err != nil {
		return "", err
	}
	return ddb.save(name, "sorting", dict)
}

func (ddb *DatasetDB) save(name, kind string, dict map[string]any) (string, error) {
	payload, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshal %s params: %w", kind, err)
	}
	id := uuid.NewString()
	stmt := `INSERT INTO datasets (id, name, kind, created_unix_nanos, params_json)
			 VALUES (?, ?, ?, ?, ?)`
	_, err = ddb.Exec(stmt, id, name, kind, time.Now().UnixNano(), string(payload))
	if err != nil {
		return "", fmt.Errorf("insert %s %q: %w", kind, name, err)
	}
	return id, nil
}

// LoadRecording rebuilds the recording saved under id.
func (ddb *DatasetDB) LoadRecording(id string) (extractor.Recording, error) {
	dict, err := ddb.loadParams(id, "recording")
	if err != nil {
		return nil, err
	}
	return extractor.RecordingFromDict(dict)
}

// LoadSorting rebuilds the sorting saved under id.
func (ddb *DatasetDB) LoadSorting(id string) (extractor.Sorting, error) {
	dict, err := ddb.loadParams(id, "sorting")
	if err != nil {
		return nil, err
	}
	return extractor.SortingFromDict(dict)
}

func (ddb *DatasetDB) loadParams(id, kind string) (map[string]any, error) {
	var payload string
	err := ddb.QueryRow(
		`SELECT params_json FROM datasets WHERE id = ? AND kind = ?`, id, kind,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no %s with id %q", kind, id)
	}
	if err != nil {
		return nil, err
	}
	var dict map[string]any
	if err := json.Unmarshal([]byte(payload), &dict); err != nil {
		return nil, fmt.Errorf("decode params for %s %q: %w", kind, id, err)
	}
	return dict, nil
}

// List returns all saved datasets, newest first.
func (ddb *DatasetDB) List() ([]Entry, error) {
	rows, err := ddb.Query(
		`SELECT id, name, kind, created_unix_nanos FROM datasets ORDER BY created_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &e.CreatedUnixN); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
