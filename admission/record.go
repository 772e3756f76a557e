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

package admission

import (
	"time"

	"github.com/jinzhu/gorm"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/tx"
)

// Record is the durable tx admission record, per spec §3 ("Tx admission
// record") and SPEC_FULL §5 ("the admission tx-record table"). Grounded on
// rollupdb.Rollup's provide.Model-embedding shape.
type Record struct {
	provide.Model

	ProofBytes  []byte `sql:"not null"`
	SenderIP    string
	Origin      string
	Accepted    bool   `sql:"not null"`
	RejectReason string
	SecondClass bool
	ReceivedAt  time.Time
}

// Recorder persists admission records, per SPEC_FULL §5. It never blocks or
// rejects a tx on its own failure — a persistence error is logged, not
// propagated, matching the teacher's "log on failure, never break the
// caller's flow" idiom for secondary writes.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by db. A nil db is valid and
// makes every Record call a no-op, useful in tests.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record persists one admission outcome. rejectReason is empty for an
// accepted tx.
func (r *Recorder) Record(proof []byte, meta tx.SenderMeta, accepted bool, rejectReason string, secondClass bool) {
	if r == nil || r.db == nil {
		return
	}

	row := &Record{
		ProofBytes:   proof,
		SenderIP:     meta.IP,
		Origin:       meta.Origin,
		Accepted:     accepted,
		RejectReason: rejectReason,
		SecondClass:  secondClass,
		ReceivedAt:   time.Now(),
	}

	if result := r.db.Create(row); result.Error != nil {
		common.Log.Warningf("failed to persist tx admission record; %s", result.Error.Error())
	}
}
