// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"encoding/json"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// UpsertRoutingPolicy inserts or updates a RoutingPolicy by id (0 means insert).
func (s *Store) UpsertRoutingPolicy(p model.RoutingPolicy) (model.RoutingPolicy, error) {
	rulesJSON, err := json.Marshal(p.MatchRules)
	if err != nil {
		return model.RoutingPolicy{}, perrs.Wrap(err, perrs.KindValidation, "marshal match_rules")
	}

	var out model.RoutingPolicy
	err = s.writeTx(func(tx *sql.Tx) error {
		if p.ID == 0 {
			res, err := tx.Exec(`
				INSERT INTO routing_policies (name, priority, match_rules_json, action, enabled, packets_matched, bytes_matched)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, p.Name, p.Priority, string(rulesJSON), string(p.Action), boolToInt(p.Enabled), p.PacketsMatched, p.BytesMatched)
			if err != nil {
				return perrs.Wrap(err, perrs.KindConflict, "insert routing policy")
			}
			id, _ := res.LastInsertId()
			out = p
			out.ID = id
			return nil
		}
		res, err := tx.Exec(`
			UPDATE routing_policies SET name=?, priority=?, match_rules_json=?, action=?, enabled=? WHERE id=?
		`, p.Name, p.Priority, string(rulesJSON), string(p.Action), boolToInt(p.Enabled), p.ID)
		if err != nil {
			return perrs.Wrap(err, perrs.KindConflict, "update routing policy")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "routing policy %d not found", p.ID)
		}
		out = p
		return nil
	})
	return out, err
}

// GetRoutingPolicy returns the RoutingPolicy with the given id.
func (s *Store) GetRoutingPolicy(id int64) (model.RoutingPolicy, error) {
	row := s.db.QueryRow(`
		SELECT id, name, priority, match_rules_json, action, enabled, packets_matched, bytes_matched
		FROM routing_policies WHERE id = ?
	`, id)
	return scanRoutingPolicy(row)
}

// ListRoutingPolicies returns every RoutingPolicy ordered by priority
// descending, per the §8 invariant that priority values returned from
// the Store are monotonically non-increasing.
func (s *Store) ListRoutingPolicies() ([]model.RoutingPolicy, error) {
	rows, err := s.db.Query(`
		SELECT id, name, priority, match_rules_json, action, enabled, packets_matched, bytes_matched
		FROM routing_policies ORDER BY priority DESC, id
	`)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list routing policies")
	}
	defer rows.Close()

	var out []model.RoutingPolicy
	for rows.Next() {
		p, err := scanRoutingPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteRoutingPolicy removes a RoutingPolicy by id.
func (s *Store) DeleteRoutingPolicy(id int64) error {
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM routing_policies WHERE id = ?`, id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete routing policy")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "routing policy %d not found", id)
		}
		return nil
	})
}

// IncrementRoutingPolicyCounters bumps packets/bytes matched for a policy.
func (s *Store) IncrementRoutingPolicyCounters(id int64, packets, bytesN uint64) error {
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE routing_policies SET packets_matched = packets_matched + ?, bytes_matched = bytes_matched + ? WHERE id = ?
		`, packets, bytesN, id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "increment routing policy counters")
		}
		return nil
	})
}

func scanRoutingPolicy(row rowScanner) (model.RoutingPolicy, error) {
	var p model.RoutingPolicy
	var rulesJSON, action string
	var enabled int
	err := row.Scan(&p.ID, &p.Name, &p.Priority, &rulesJSON, &action, &enabled, &p.PacketsMatched, &p.BytesMatched)
	if err != nil {
		if isNoRows(err) {
			return model.RoutingPolicy{}, perrs.New(perrs.KindNotFound, "routing policy not found")
		}
		return model.RoutingPolicy{}, perrs.Wrap(err, perrs.KindTransientIO, "scan routing policy")
	}
	p.Action = model.RoutingAction(action)
	p.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(rulesJSON), &p.MatchRules); err != nil {
		return model.RoutingPolicy{}, perrs.Wrap(err, perrs.KindInternal, "unmarshal match_rules")
	}
	return p, nil
}

// UpsertNetworkPolicy inserts or updates a NetworkPolicy by id (0 means insert).
func (s *Store) UpsertNetworkPolicy(p model.NetworkPolicy) (model.NetworkPolicy, error) {
	selJSON, err := json.Marshal(p.PodSelector)
	if err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindValidation, "marshal pod_selector")
	}
	typesJSON, err := json.Marshal(p.PolicyTypes)
	if err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindValidation, "marshal policy_types")
	}
	ingressJSON, err := json.Marshal(p.Ingress)
	if err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindValidation, "marshal ingress")
	}
	egressJSON, err := json.Marshal(p.Egress)
	if err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindValidation, "marshal egress")
	}

	var out model.NetworkPolicy
	err = s.writeTx(func(tx *sql.Tx) error {
		if p.ID == 0 {
			res, err := tx.Exec(`
				INSERT INTO network_policies (name, namespace, pod_selector_json, policy_types_json, ingress_json, egress_json, priority, enabled)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, p.Name, p.Namespace, string(selJSON), string(typesJSON), string(ingressJSON), string(egressJSON), p.Priority, boolToInt(p.Enabled))
			if err != nil {
				return perrs.Wrap(err, perrs.KindConflict, "insert network policy")
			}
			id, _ := res.LastInsertId()
			out = p
			out.ID = id
			return nil
		}
		res, err := tx.Exec(`
			UPDATE network_policies SET name=?, namespace=?, pod_selector_json=?, policy_types_json=?, ingress_json=?, egress_json=?, priority=?, enabled=?
			WHERE id=?
		`, p.Name, p.Namespace, string(selJSON), string(typesJSON), string(ingressJSON), string(egressJSON), p.Priority, boolToInt(p.Enabled), p.ID)
		if err != nil {
			return perrs.Wrap(err, perrs.KindConflict, "update network policy")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "network policy %d not found", p.ID)
		}
		out = p
		return nil
	})
	return out, err
}

// GetNetworkPolicy returns the NetworkPolicy with the given id.
func (s *Store) GetNetworkPolicy(id int64) (model.NetworkPolicy, error) {
	row := s.db.QueryRow(`
		SELECT id, name, namespace, pod_selector_json, policy_types_json, ingress_json, egress_json, priority, enabled
		FROM network_policies WHERE id = ?
	`, id)
	return scanNetworkPolicy(row)
}

// ListNetworkPoliciesByNamespace returns policies scoped to one namespace.
func (s *Store) ListNetworkPoliciesByNamespace(namespace string) ([]model.NetworkPolicy, error) {
	rows, err := s.db.Query(`
		SELECT id, name, namespace, pod_selector_json, policy_types_json, ingress_json, egress_json, priority, enabled
		FROM network_policies WHERE namespace = ? ORDER BY priority DESC, id
	`, namespace)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list network policies")
	}
	defer rows.Close()

	var out []model.NetworkPolicy
	for rows.Next() {
		p, err := scanNetworkPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListAllNetworkPolicies returns every NetworkPolicy across namespaces,
// used to (re)build the compiled admission index.
func (s *Store) ListAllNetworkPolicies() ([]model.NetworkPolicy, error) {
	rows, err := s.db.Query(`
		SELECT id, name, namespace, pod_selector_json, policy_types_json, ingress_json, egress_json, priority, enabled
		FROM network_policies ORDER BY namespace, priority DESC, id
	`)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list all network policies")
	}
	defer rows.Close()

	var out []model.NetworkPolicy
	for rows.Next() {
		p, err := scanNetworkPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteNetworkPolicy removes a NetworkPolicy by id.
func (s *Store) DeleteNetworkPolicy(id int64) error {
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM network_policies WHERE id = ?`, id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete network policy")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "network policy %d not found", id)
		}
		return nil
	})
}

func scanNetworkPolicy(row rowScanner) (model.NetworkPolicy, error) {
	var p model.NetworkPolicy
	var selJSON, typesJSON, ingressJSON, egressJSON string
	var enabled int
	err := row.Scan(&p.ID, &p.Name, &p.Namespace, &selJSON, &typesJSON, &ingressJSON, &egressJSON, &p.Priority, &enabled)
	if err != nil {
		if isNoRows(err) {
			return model.NetworkPolicy{}, perrs.New(perrs.KindNotFound, "network policy not found")
		}
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindTransientIO, "scan network policy")
	}
	p.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(selJSON), &p.PodSelector); err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindInternal, "unmarshal pod_selector")
	}
	if err := json.Unmarshal([]byte(typesJSON), &p.PolicyTypes); err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindInternal, "unmarshal policy_types")
	}
	if err := json.Unmarshal([]byte(ingressJSON), &p.Ingress); err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindInternal, "unmarshal ingress")
	}
	if err := json.Unmarshal([]byte(egressJSON), &p.Egress); err != nil {
		return model.NetworkPolicy{}, perrs.Wrap(err, perrs.KindInternal, "unmarshal egress")
	}
	return p, nil
}
