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

// Package notify broadcasts rollup lifecycle events (submitted, confirmed,
// rejected) over NATS JetStream, the cross-process notification transport
// named in SPEC_FULL §5 ("Async messaging").
//
// Grounded on prover/notifications.go's dispatchNotification/
// notificationsSubjectPrefix pattern, generalized from a per-prover subject
// namespace to a per-rollup one.
package notify

import (
	"encoding/json"
	"fmt"

	natsutil "github.com/kthomas/go-natsutil"

	"github.com/provideplatform/rollup-aggregator/common"
)

const subjectPrefix = "rollup-aggregator.rollup.notification"

const (
	EventSubmitted = "submitted"
	EventConfirmed = "confirmed"
	EventRejected  = "rejected"
)

// Publisher dispatches rollup lifecycle events. A nil *Publisher is usable
// and silently drops every event, so components can hold a *Publisher
// field that is nil in tests and unit-level callers.
type Publisher struct{}

// Dispatch broadcasts a rollup lifecycle event. Failures are logged, never
// returned, following the teacher's "never break the caller's flow" idiom
// for secondary notification side effects.
func (p *Publisher) Dispatch(rollupID uint64, event string, detail map[string]interface{}) {
	if p == nil {
		return
	}

	subject := fmt.Sprintf("%s.%d.%s", subjectPrefix, rollupID, event)

	if detail == nil {
		detail = map[string]interface{}{}
	}
	detail["rollup_id"] = rollupID

	payload, err := json.Marshal(detail)
	if err != nil {
		common.Log.Warningf("failed to marshal rollup notification payload for rollup %d event %s; %s", rollupID, event, err.Error())
		return
	}

	if _, err := natsutil.NatsJetstreamPublish(subject, payload); err != nil {
		common.Log.Warningf("failed to dispatch rollup notification for rollup %d event %s; %s", rollupID, event, err.Error())
	}
}
