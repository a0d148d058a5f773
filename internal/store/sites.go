// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"encoding/json"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// UpsertSite inserts or replaces a Site by id.
func (s *Store) UpsertSite(site model.Site) error {
	endpointsJSON, err := json.Marshal(site.Endpoints)
	if err != nil {
		return perrs.Wrap(err, perrs.KindValidation, "marshal endpoints")
	}
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sites (id, name, location, status, endpoints_json, created_at, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				location = excluded.location,
				status = excluded.status,
				endpoints_json = excluded.endpoints_json,
				last_seen = excluded.last_seen
		`, site.ID, site.Name, site.Location, string(site.Status), string(endpointsJSON),
			site.CreatedAt.Unix(), site.LastSeen.Unix())
		if err != nil {
			return perrs.Wrap(err, perrs.KindConflict, "upsert site")
		}
		return nil
	})
}

// GetSite returns the Site with the given id, or a KindNotFound error.
func (s *Store) GetSite(id string) (model.Site, error) {
	row := s.db.QueryRow(`SELECT id, name, location, status, endpoints_json, created_at, last_seen FROM sites WHERE id = ?`, id)
	return scanSite(row)
}

// ListSites returns every Site, ordered by name.
func (s *Store) ListSites() ([]model.Site, error) {
	rows, err := s.db.Query(`SELECT id, name, location, status, endpoints_json, created_at, last_seen FROM sites ORDER BY name`)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list sites")
	}
	defer rows.Close()

	var out []model.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

// CountSites returns the number of Sites.
func (s *Store) CountSites() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sites`).Scan(&n); err != nil {
		return 0, perrs.Wrap(err, perrs.KindTransientIO, "count sites")
	}
	return n, nil
}

// DeleteSite removes a Site after verifying no Path references it,
// per the §3 invariant "if Path exists then both referenced sites
// exist". Callers that intend to remove a site's paths first (the
// Mesh Manager, on topology change) must do so before calling this.
func (s *Store) DeleteSite(id string) error {
	return s.writeTx(func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM paths WHERE src_site_id = ? OR dst_site_id = ?`, id, id).Scan(&n); err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "check path references")
		}
		if n > 0 {
			return perrs.Errorf(perrs.KindConflict, "site %s still has %d referencing paths", id, n)
		}
		res, err := tx.Exec(`DELETE FROM sites WHERE id = ?`, id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete site")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "site %s not found", id)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (model.Site, error) {
	var site model.Site
	var status, endpointsJSON string
	var createdAt, lastSeen int64
	err := row.Scan(&site.ID, &site.Name, &site.Location, &status, &endpointsJSON, &createdAt, &lastSeen)
	if err != nil {
		if isNoRows(err) {
			return model.Site{}, perrs.New(perrs.KindNotFound, "site not found")
		}
		return model.Site{}, perrs.Wrap(err, perrs.KindTransientIO, "scan site")
	}
	site.Status = model.SiteStatus(status)
	site.CreatedAt = unixTime(createdAt)
	site.LastSeen = unixTime(lastSeen)
	if err := json.Unmarshal([]byte(endpointsJSON), &site.Endpoints); err != nil {
		return model.Site{}, perrs.Wrap(err, perrs.KindInternal, "unmarshal endpoints")
	}
	return site, nil
}
