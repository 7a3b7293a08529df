// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

// ConfigDiff is the result of comparing two configuration mappings by key.
type ConfigDiff struct {
	// Added holds names present only in the new mapping, in new-map order.
	Added []string

	// Removed holds names present only in the old mapping, in old-map order.
	Removed []string

	// Retained holds names present in both, in new-map order. Their
	// configuration is replaced unconditionally; contents are never diffed.
	Retained []string
}

// DiffConfigs computes which project names were added, removed, or retained
// between two configuration mappings.
//
// Pure function over the two key sets; either mapping may be nil (treated
// as empty). Configuration values are irrelevant beyond key presence.
func DiffConfigs(old, new *ConfigMap) ConfigDiff {
	var diff ConfigDiff

	for _, name := range new.Names() {
		if old.Has(name) {
			diff.Retained = append(diff.Retained, name)
		} else {
			diff.Added = append(diff.Added, name)
		}
	}
	for _, name := range old.Names() {
		if !new.Has(name) {
			diff.Removed = append(diff.Removed, name)
		}
	}

	return diff
}
