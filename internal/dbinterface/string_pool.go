// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dbinterface

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLITE_MAX_VARIABLE_NUMBER defaults to 999
const maxParams = 900

// BuildPlaceholders returns "?,?,...,?" with n placeholders.
func BuildPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// InternStrings stores the given labels in string_pool and returns their IDs
// in input order. Duplicates share an ID. Empty values are rejected.
func InternStrings(ctx context.Context, tx TxQuerier, values ...string) ([]int64, error) {
	if len(values) == 0 {
		return []int64{}, nil
	}

	unique := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for i, v := range values {
		if v == "" {
			return nil, fmt.Errorf("value at index %d is empty", i)
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}

	for start := 0; start < len(unique); start += maxParams {
		chunk := unique[start:min(start+maxParams, len(unique))]
		args := make([]any, len(chunk))
		for i, v := range chunk {
			args[i] = v
		}

		query := "INSERT OR IGNORE INTO string_pool (value) VALUES (" + strings.Repeat("?),(", len(chunk)-1) + "?)"
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to insert into string pool: %w", err)
		}
	}

	ids, err := GetStringID(ctx, tx, values...)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(ids))
	for i, id := range ids {
		if !id.Valid {
			return nil, fmt.Errorf("failed to get ID for interned string %q", values[i])
		}
		out[i] = id.Int64
	}
	return out, nil
}

// InternStringNullable interns optional values. Nil or empty inputs map to an
// invalid sql.NullInt64.
func InternStringNullable(ctx context.Context, tx TxQuerier, values ...*string) ([]sql.NullInt64, error) {
	results := make([]sql.NullInt64, len(values))

	var present []string
	var positions []int
	for i, v := range values {
		if v == nil || *v == "" {
			continue
		}
		present = append(present, *v)
		positions = append(positions, i)
	}
	if len(present) == 0 {
		return results, nil
	}

	ids, err := InternStrings(ctx, tx, present...)
	if err != nil {
		return nil, err
	}
	for i, pos := range positions {
		results[pos] = sql.NullInt64{Int64: ids[i], Valid: true}
	}
	return results, nil
}

// GetStringID looks up IDs without creating entries. Unknown or empty values
// map to an invalid sql.NullInt64.
func GetStringID(ctx context.Context, tx TxQuerier, values ...string) ([]sql.NullInt64, error) {
	results := make([]sql.NullInt64, len(values))

	lookup := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		lookup = append(lookup, v)
	}

	found := make(map[string]int64, len(lookup))
	for start := 0; start < len(lookup); start += maxParams {
		chunk := lookup[start:min(start+maxParams, len(lookup))]
		args := make([]any, len(chunk))
		for i, v := range chunk {
			args[i] = v
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT id, value FROM string_pool WHERE value IN ("+BuildPlaceholders(len(chunk))+")", args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query string pool: %w", err)
		}
		for rows.Next() {
			var id int64
			var value string
			if err := rows.Scan(&id, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan string pool row: %w", err)
			}
			found[value] = id
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating string pool rows: %w", err)
		}
		rows.Close()
	}

	for i, v := range values {
		if id, ok := found[v]; ok {
			results[i] = sql.NullInt64{Int64: id, Valid: true}
		}
	}
	return results, nil
}
