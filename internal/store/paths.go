// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// UpsertPath inserts a new Path or updates an existing one matched by
// the (src_site, dst_site, src_endpoint, dst_endpoint) uniqueness
// invariant of §3. Referential integrity against sites is enforced by
// the foreign key declared in the schema.
func (s *Store) UpsertPath(p model.Path) (model.Path, error) {
	var out model.Path
	err := s.writeTx(func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRow(`
			SELECT id FROM paths WHERE src_site_id=? AND dst_site_id=? AND src_endpoint_id=? AND dst_endpoint_id=?
		`, p.SrcSiteID, p.DstSiteID, p.SrcEndpointID, p.DstEndpointID).Scan(&exists)

		var tunnelOpaque, tunnelPubkey []byte
		if p.Tunnel != nil {
			tunnelOpaque = p.Tunnel.Opaque
			tunnelPubkey = p.Tunnel.PeerPublicKey
		}

		switch {
		case err == nil:
			if _, err := tx.Exec(`
				UPDATE paths SET transport=?, status=?, tunnel_opaque=?, tunnel_peer_pubkey=? WHERE id=?
			`, string(p.Transport), string(p.Status), tunnelOpaque, tunnelPubkey, exists); err != nil {
				return perrs.Wrap(err, perrs.KindTransientIO, "update path")
			}
			out = p
			out.ID = exists
			return nil
		case isNoRows(err):
			var siteCount int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM sites WHERE id IN (?, ?)`, p.SrcSiteID, p.DstSiteID).Scan(&siteCount); err != nil {
				return perrs.Wrap(err, perrs.KindTransientIO, "verify sites")
			}
			if siteCount != 2 {
				return perrs.Errorf(perrs.KindConflict, "path references nonexistent site(s)")
			}
			res, err := tx.Exec(`
				INSERT INTO paths (src_site_id, dst_site_id, src_endpoint_id, dst_endpoint_id, transport, status, tunnel_opaque, tunnel_peer_pubkey)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, p.SrcSiteID, p.DstSiteID, p.SrcEndpointID, p.DstEndpointID, string(p.Transport), string(p.Status), tunnelOpaque, tunnelPubkey)
			if err != nil {
				return perrs.Wrap(err, perrs.KindConflict, "insert path")
			}
			id, err := res.LastInsertId()
			if err != nil {
				return perrs.Wrap(err, perrs.KindTransientIO, "path last insert id")
			}
			out = p
			out.ID = id
			return nil
		default:
			return perrs.Wrap(err, perrs.KindTransientIO, "check existing path")
		}
	})
	return out, err
}

// GetPath returns the Path with the given id.
func (s *Store) GetPath(id int64) (model.Path, error) {
	row := s.db.QueryRow(`
		SELECT id, src_site_id, dst_site_id, src_endpoint_id, dst_endpoint_id, transport, status, tunnel_opaque, tunnel_peer_pubkey
		FROM paths WHERE id = ?
	`, id)
	return scanPath(row)
}

// ListPaths returns all paths, optionally filtered to those touching siteID.
func (s *Store) ListPaths(siteID string) ([]model.Path, error) {
	var rows *sql.Rows
	var err error
	if siteID == "" {
		rows, err = s.db.Query(`
			SELECT id, src_site_id, dst_site_id, src_endpoint_id, dst_endpoint_id, transport, status, tunnel_opaque, tunnel_peer_pubkey
			FROM paths ORDER BY id
		`)
	} else {
		rows, err = s.db.Query(`
			SELECT id, src_site_id, dst_site_id, src_endpoint_id, dst_endpoint_id, transport, status, tunnel_opaque, tunnel_peer_pubkey
			FROM paths WHERE src_site_id = ? OR dst_site_id = ? ORDER BY id
		`, siteID, siteID)
	}
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list paths")
	}
	defer rows.Close()
	return scanPaths(rows)
}

// ListPathsByPair returns all paths between an ordered (src, dst) site pair.
func (s *Store) ListPathsByPair(srcSiteID, dstSiteID string) ([]model.Path, error) {
	rows, err := s.db.Query(`
		SELECT id, src_site_id, dst_site_id, src_endpoint_id, dst_endpoint_id, transport, status, tunnel_opaque, tunnel_peer_pubkey
		FROM paths WHERE src_site_id = ? AND dst_site_id = ? ORDER BY id
	`, srcSiteID, dstSiteID)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list paths by pair")
	}
	defer rows.Close()
	return scanPaths(rows)
}

// DeletePath removes a Path by id.
func (s *Store) DeletePath(id int64) error {
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM paths WHERE id = ?`, id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete path")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "path %d not found", id)
		}
		return nil
	})
}

// UpdatePathStatus persists a Scorer-driven status transition.
func (s *Store) UpdatePathStatus(id int64, status model.PathStatus) error {
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE paths SET status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "update path status")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "path %d not found", id)
		}
		return nil
	})
}

func scanPath(row rowScanner) (model.Path, error) {
	var p model.Path
	var transport, status string
	var tunnelOpaque, tunnelPubkey []byte
	err := row.Scan(&p.ID, &p.SrcSiteID, &p.DstSiteID, &p.SrcEndpointID, &p.DstEndpointID, &transport, &status, &tunnelOpaque, &tunnelPubkey)
	if err != nil {
		if isNoRows(err) {
			return model.Path{}, perrs.New(perrs.KindNotFound, "path not found")
		}
		return model.Path{}, perrs.Wrap(err, perrs.KindTransientIO, "scan path")
	}
	p.Transport = model.Transport(transport)
	p.Status = model.PathStatus(status)
	if tunnelOpaque != nil || tunnelPubkey != nil {
		p.Tunnel = &model.TunnelDescriptor{Opaque: tunnelOpaque, PeerPublicKey: tunnelPubkey}
	}
	return p, nil
}

func scanPaths(rows *sql.Rows) ([]model.Path, error) {
	var out []model.Path
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
