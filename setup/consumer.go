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

package setup

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"

	"github.com/provideplatform/rollup-aggregator/common"
)

const defaultNatsStream = "rollup-aggregator"

const natsCeremonyPendingSubject = "rollup-aggregator.ceremony.pending"
const ceremonyPendingAckWait = time.Second * 5
const ceremonyPendingTimeout = int64(time.Minute * 1)
const ceremonyPendingMaxInFlight = 512
const ceremonyPendingMaxDeliveries = 5

const natsCeremonyCompleteSubject = "rollup-aggregator.ceremony.complete"
const ceremonyCompleteAckWait = time.Hour * 1
const ceremonyCompleteTimeout = int64(time.Hour * 1)
const ceremonyCompleteMaxInFlight = 512
const ceremonyCompleteMaxDeliveries = 5

const natsGenerateCeremonyEntropySubject = "rollup-aggregator.ceremony.entropy.generate"
const ceremonyGenerateEntropyAckWait = time.Hour * 1
const ceremonyGenerateEntropyTimeout = int64(time.Hour * 6)
const ceremonyGenerateEntropyMaxInFlight = 1024

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("setup package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsCeremonyPendingSubscriptions(&waitGroup)
	createNatsCeremonyCompleteSubscriptions(&waitGroup)
	createNatsGenerateCeremonyEntropySubscriptions(&waitGroup)
}

func createNatsCeremonyPendingSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			ceremonyPendingAckWait,
			natsCeremonyPendingSubject,
			natsCeremonyPendingSubject,
			natsCeremonyPendingSubject,
			consumeCeremonyPendingMsg,
			ceremonyPendingAckWait,
			ceremonyPendingMaxInFlight,
			ceremonyPendingMaxDeliveries,
			nil,
		)
	}
}

func createNatsCeremonyCompleteSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			ceremonyCompleteAckWait,
			natsCeremonyCompleteSubject,
			natsCeremonyCompleteSubject,
			natsCeremonyCompleteSubject,
			consumeCeremonyCompleteMsg,
			ceremonyCompleteAckWait,
			ceremonyCompleteMaxInFlight,
			ceremonyCompleteMaxDeliveries,
			nil,
		)
	}
}

func createNatsGenerateCeremonyEntropySubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			ceremonyGenerateEntropyAckWait,
			natsGenerateCeremonyEntropySubject,
			natsGenerateCeremonyEntropySubject,
			natsGenerateCeremonyEntropySubject,
			consumeCeremonyGenerateEntropyMsg,
			ceremonyGenerateEntropyAckWait,
			ceremonyGenerateEntropyMaxInFlight,
			ceremonyPendingMaxDeliveries,
			nil,
		)
	}
}

func consumeCeremonyPendingMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during pending ceremony state transition; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS pending ceremony message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal pending ceremony message; %s", err.Error())
		msg.Nak()
		return
	}

	ceremonyID, ceremonyIDOk := params["ceremony_id"].(string)
	if !ceremonyIDOk {
		common.Log.Warning("failed to unmarshal ceremony_id during pending message handler")
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()

	ceremony := &Ceremony{}
	db.Where("id = ?", ceremonyID).Find(&ceremony)

	if ceremony == nil || ceremony.ID == uuid.Nil {
		common.Log.Warningf("failed to resolve ceremony during async pending message handler; ceremony id: %s", ceremonyID)
		msg.Nak()
		return
	}

	if err := ceremony.enrich(); err != nil {
		common.Log.Warningf("failed to enrich ceremony; %s", err.Error())
	}

	for _, party := range ceremony.Parties {
		common.Log.Debugf("TODO-- dispatch point-to-point message to party: %s", string(party))
	}

	msg.Ack()
}

func consumeCeremonyCompleteMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during complete ceremony state transition; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS complete ceremony message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal complete ceremony message; %s", err.Error())
		msg.Nak()
		return
	}

	ceremonyID, ceremonyIDOk := params["ceremony_id"].(string)
	if !ceremonyIDOk {
		common.Log.Warning("failed to unmarshal ceremony_id during complete message handler")
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()

	ceremony := &Ceremony{}
	db.Where("id = ?", ceremonyID).Find(&ceremony)

	if ceremony == nil || ceremony.ID == uuid.Nil {
		common.Log.Warningf("failed to resolve ceremony during async complete message handler; ceremony id: %s", ceremonyID)
		msg.Nak()
		return
	}

	if err := ceremony.enrich(); err != nil {
		common.Log.Warningf("failed to enrich ceremony; %s", err.Error())
	}

	common.Log.Debugf("TODO... sort %d parties and derive the join-split circuit SRS from the combined entropy", len(ceremony.Parties))

	ceremony.updateStatus(db, ceremonyStatusComplete, nil)

	msg.Ack()
}

func consumeCeremonyGenerateEntropyMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during ceremony entropy message transition; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS ceremony entropy message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal ceremony entropy message; %s", err.Error())
		msg.Nak()
		return
	}

	ceremonyID, ceremonyIDOk := params["ceremony_id"].(string)
	if !ceremonyIDOk {
		common.Log.Warning("failed to unmarshal ceremony_id during entropy message handler")
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()

	ceremony := &Ceremony{}
	db.Where("id = ?", ceremonyID).Find(&ceremony)

	if ceremony == nil || ceremony.ID == uuid.Nil {
		common.Log.Warningf("failed to resolve ceremony during async ceremony entropy handler; ceremony id: %s", ceremonyID)
		msg.Nak()
		return
	}

	if err := ceremony.GenerateEntropy(); err != nil {
		common.Log.Warningf("failed to generate entropy for ceremony %s; %s", ceremony.ID, err.Error())
		msg.Nak()
		return
	}

	for _, party := range ceremony.Parties {
		common.Log.Debugf("TODO-- dispatch point-to-point message to party %s to share our calculated entropy contribution", string(party))
	}

	msg.Ack()
}
