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

package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"
	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
)

const defaultNatsStream = "datapool"

const natsProofAttestedSubject = "datapool.proof.attested"
const natsProofAttestedMaxInFlight = 256
const proofAttestedAckWait = time.Second * 30
const proofAttestedMaxDeliveries = 5

// ProofAttestation is published by the proof oracle once a seller's proof has been verified
type ProofAttestation struct {
	PoolID     uuid.UUID `json:"pool_id"`
	Seller     string    `json:"seller"`
	ProofName  string    `json:"proof_name"`
	ProofValue string    `json:"proof_value"`
}

// RequireOracleSubscriptions subscribes to proof attestations on behalf of the given pools
func RequireOracleSubscriptions(wg *sync.WaitGroup, pools Directory) {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("pool package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	handler := func(msg *nats.Msg) {
		consumeProofAttestedMsg(pools, msg)
	}

	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			proofAttestedAckWait,
			natsProofAttestedSubject,
			natsProofAttestedSubject,
			natsProofAttestedSubject,
			handler,
			proofAttestedAckWait,
			natsProofAttestedMaxInFlight,
			proofAttestedMaxDeliveries,
			nil,
		)
	}
}

func consumeProofAttestedMsg(pools Directory, msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during proof attestation; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS proof attestation message on subject: %s", len(msg.Data), msg.Subject)

	if redeliver, err := applyProofAttestation(context.Background(), pools, msg.Data); redeliver {
		common.Log.Warningf("failed to apply proof attestation; %s", err.Error())
		msg.Nak()
	} else {
		if err != nil {
			common.Log.Debugf("dropped proof attestation; %s", err.Error())
		}
		msg.Ack()
	}
}

// applyProofAttestation submits the attested proof to its pool; redeliver is true only when
// the submission failed for a reason a later attempt may not hit
func applyProofAttestation(ctx context.Context, pools Directory, data []byte) (redeliver bool, err error) {
	attestation := &ProofAttestation{}
	err = json.Unmarshal(data, attestation)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal proof attestation; %s", err.Error())
	}

	if attestation.PoolID == uuid.Nil || attestation.Seller == "" || attestation.ProofName == "" {
		return false, fmt.Errorf("failed to apply proof attestation; pool_id, seller and proof_name required")
	}

	p, err := pools.Find(attestation.PoolID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve pool %s for proof attestation; %w", attestation.PoolID, err)
	}

	if p.Expired(time.Now()) {
		return false, fmt.Errorf("failed to apply proof attestation for pool %s; %w", p.ID, fault.ErrPoolExpired)
	}

	_, err = p.SubmitOracleProof(ctx, attestation.Seller, attestation.ProofName, attestation.ProofValue)
	if err != nil {
		return fault.IsErrProcess(err), fmt.Errorf("failed to submit attested proof %s for seller %s in pool %s; %w", attestation.ProofName, attestation.Seller, p.ID, err)
	}

	return false, nil
}
