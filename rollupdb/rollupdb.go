/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rollupdb persists the monotonically increasing next-rollup-id
// counter and a tamper-evident history of built rollups, per spec §6
// ("Persisted state").
//
// Grounded on store/store.go's gorm model shape (provide.Model embed,
// Create/validate idiom) for the history rows.
package rollupdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/gorm"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/provideplatform/rollup-aggregator/common"
)

// Rollup is a persisted history row for one built, submitted rollup.
type Rollup struct {
	provide.Model

	RollupID       uint64 `sql:"not null"`
	DataStartIndex uint64 `sql:"not null"`
	RollupRoot     string `sql:"not null"` // hex-encoded
	TxHash         *string
	CreatedAt      time.Time
}

// DB wraps the persistence and next-id counter the aggregator depends on.
type DB struct {
	mu    sync.Mutex
	db    *gorm.DB
	next  uint64
	audit *auditLog
}

// New constructs a DB, recovering the next rollup id from the highest
// persisted RollupID (or 0, for a fresh deployment).
func New(db *gorm.DB) *DB {
	d := &DB{db: db, audit: newAuditLog()}
	d.next = d.loadNextRollupID()
	return d
}

func (d *DB) loadNextRollupID() uint64 {
	if d.db == nil {
		return 0
	}

	var max uint64
	row := d.db.Raw("SELECT COALESCE(MAX(rollup_id), -1) + 1 FROM rollups").Row()
	if row != nil {
		_ = row.Scan(&max)
	}
	return max
}

// NextRollupID returns the next rollup id to assign, per spec §6
// ("the aggregator relies only on nextRollupId() and insert").
func (d *DB) NextRollupID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next
}

// Insert persists a built rollup's history row, advances the next-id
// counter, and folds the rollup into the tamper-evident audit accumulator.
func (d *DB) Insert(rollupID, dataStartIndex uint64, rollupRoot []byte, txHash *string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rollupID != d.next {
		return fmt.Errorf("out-of-order rollup insert: expected rollup id %d, got %d", d.next, rollupID)
	}

	row := &Rollup{
		RollupID:       rollupID,
		DataStartIndex: dataStartIndex,
		RollupRoot:     fmt.Sprintf("%x", rollupRoot),
		TxHash:         txHash,
		CreatedAt:      time.Now(),
	}

	if d.db != nil {
		result := d.db.Create(row)
		if result.Error != nil {
			common.Log.Warningf("failed to persist rollup history row for rollup %d; %s", rollupID, result.Error.Error())
			return result.Error
		}
	}

	if err := d.audit.append(row); err != nil {
		common.Log.Warningf("failed to fold rollup %d into audit accumulator; %s", rollupID, err.Error())
		return err
	}

	d.next++
	return nil
}

// AuditRoot returns the current root of the tamper-evident accumulator
// over every inserted rollup's history row.
func (d *DB) AuditRoot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.audit.root()
}
