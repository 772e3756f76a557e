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

// Package setup runs the multi-party ceremony that produces the PLONK SRS
// the join-split rollup circuit needs before first use, the "SRS ceremony"
// supplemented feature (SPEC_FULL §7). The resulting SRS is handed off to
// proofgen/zkp the same way the teacher hands a verifying key to Prover: as
// a vault-held secret.
package setup

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jinzhu/gorm"
	provide "github.com/provideplatform/provide-go/api"
	"github.com/provideplatform/provide-go/api/vault"
	util "github.com/provideplatform/provide-go/common/util"

	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"
	natsutil "github.com/kthomas/go-natsutil"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/kzg"

	kzgbls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377/fr/kzg"
	kzgbls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/fr/kzg"
	kzgbls24315 "github.com/consensys/gnark-crypto/ecc/bls24-315/fr/kzg"
	kzgbn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr/kzg"
	kzgbw6761 "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/kzg"

	"github.com/provideplatform/rollup-aggregator/common"
)

const defaultWordSize = 32

// Config carries the per-party entropy contribution parameters.
type Config struct {
	Block           *uint64 `json:"block"`            // block number used as a public entropy source
	ExpectedEntropy int     `json:"expected_entropy"` // expected bytes of entropy from all parties plus the block beacon
	Index           int     `json:"index"`            // this party's index
	WordSize        int     `json:"word_size"`
}

const (
	ceremonyStatusPending  = "pending"
	ceremonyStatusCreated  = "created"
	ceremonyStatusComplete = "complete"
)

// Ceremony is a single SRS multi-party computation in progress.
type Ceremony struct {
	provide.Model

	VaultID uuid.UUID  `json:"vault_id"`
	CurveID string     `json:"curve_id"`
	SRSID   *uuid.UUID `json:"srs_id"`

	Config  Config   `json:"config"`
	Parties [][]byte `json:"parties"`
	Status  *string  `json:"status"`
	entropy []byte   `json:"-"`
}

// NewCeremony constructs a Ceremony for the given parties, defaulting word
// size and expected entropy the way the teacher's CeremonyFactory does.
func NewCeremony(parties [][]byte, config *Config) *Ceremony {
	ceremony := &Ceremony{
		Parties: parties,
		Config:  *config,
	}

	if ceremony.Config.WordSize <= 0 {
		ceremony.Config.WordSize = defaultWordSize
	}
	if ceremony.Config.ExpectedEntropy <= 0 {
		ceremony.Config.ExpectedEntropy = ceremony.Config.WordSize * (len(parties) + 1)
	}

	ceremony.entropy = make([]byte, ceremony.Config.ExpectedEntropy)
	return ceremony
}

// AddParty folds another party's entropy contribution in at its index.
func (c *Ceremony) AddParty(other *Ceremony) error {
	if c.Config.WordSize != other.Config.WordSize {
		return fmt.Errorf("other word size %d does not match expected word size %d", other.Config.WordSize, c.Config.WordSize)
	}
	copy(c.entropy[other.Config.Index*other.Config.WordSize:], other.entropy[other.Config.Index*other.Config.WordSize:(other.Config.Index+1)*other.Config.WordSize])
	return nil
}

func (c *Ceremony) calculateAlpha() (*big.Int, error) {
	alpha := new(big.Int)
	alpha.SetBytes(c.entropy)
	return alpha, nil
}

// Create persists the ceremony and publishes its pending-state notification.
func (c *Ceremony) Create() bool {
	if !c.validate() {
		return false
	}

	db := dbconf.DatabaseConnection()

	if !db.NewRecord(c) {
		return false
	}

	result := db.Create(&c)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			c.Errors = append(c.Errors, &provide.Error{Message: common.StringOrNil(err.Error())})
		}
		return false
	}

	if db.NewRecord(c) {
		return false
	}

	if result.RowsAffected == 0 {
		return false
	}

	c.updateStatus(db, ceremonyStatusPending, nil)

	payload, _ := json.Marshal(map[string]interface{}{"ceremony_id": c.ID.String()})
	natsutil.NatsStreamingPublish(natsCeremonyPendingSubject, payload)
	c.updateStatus(db, ceremonyStatusCreated, nil)

	return true
}

func (c *Ceremony) enrich() error {
	return nil
}

// GenerateEntropy contributes this party's random word into the shared
// entropy buffer at its configured index.
func (c *Ceremony) GenerateEntropy() error {
	entropy, err := common.RandomBytes(c.Config.WordSize)
	if err != nil {
		return fmt.Errorf("unable to generate entropy for mpc ceremony; %s", err.Error())
	}
	copy(c.entropy[c.Config.Index*c.Config.WordSize:], entropy)
	return nil
}

// GenerateSRS derives the PLONK structured reference string at the given
// constraint system size, for the given curve, from the accumulated
// multi-party entropy.
func (c *Ceremony) GenerateSRS(size uint64, curveID ecc.ID) (kzg.SRS, error) {
	alpha, err := c.calculateAlpha()
	if err != nil {
		return nil, fmt.Errorf("unable to calculate alpha value; %s", err.Error())
	}

	switch curveID {
	case ecc.BN254:
		return kzgbn254.NewSRS(ecc.NextPowerOfTwo(size)+3, alpha)
	case ecc.BLS12_381:
		return kzgbls12381.NewSRS(ecc.NextPowerOfTwo(size)+3, alpha)
	case ecc.BLS12_377:
		return kzgbls12377.NewSRS(ecc.NextPowerOfTwo(size)+3, alpha)
	case ecc.BW6_761:
		return kzgbw6761.NewSRS(ecc.NextPowerOfTwo(size)+3, alpha)
	case ecc.BLS24_315:
		return kzgbls24315.NewSRS(ecc.NextPowerOfTwo(size)+3, alpha)
	default:
		return nil, fmt.Errorf("invalid curve id")
	}
}

// GetEntropy fills the block-beacon word (the last word of the entropy
// buffer) with zero bytes; block is not read.
func (c *Ceremony) GetEntropy(block uint64) error {
	// TODO: resolve entropy from the block hash at the given height via chain.Adapter
	entropy := make([]byte, c.Config.WordSize)
	copy(c.entropy[len(c.entropy)-c.Config.WordSize:], entropy)
	return nil
}

// SubmitEntropy returns nil without sending this party's entropy
// contribution anywhere.
func (c *Ceremony) SubmitEntropy() error {
	// TODO: broadcast entropy to other parties over a point-to-point channel
	return nil
}

func (c *Ceremony) updateStatus(db *gorm.DB, status string, description *string) error {
	c.Status = common.StringOrNil(status)
	if db.NewRecord(&c) {
		return nil
	}

	result := db.Save(&c)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			c.Errors = append(c.Errors, &provide.Error{Message: common.StringOrNil(err.Error())})
		}
		return errs[0]
	}
	return nil
}

func (c *Ceremony) validate() bool {
	c.Errors = make([]*provide.Error, 0)
	return len(c.Errors) == 0
}

func (c *Ceremony) curveID() ecc.ID {
	switch c.CurveID {
	case "BN254":
		return ecc.BN254
	case "BLS12_381":
		return ecc.BLS12_381
	case "BLS12_377":
		return ecc.BLS12_377
	case "BW6_761":
		return ecc.BW6_761
	case "BLS24_315":
		return ecc.BLS24_315
	default:
		return ecc.BN254
	}
}

// Provision derives the SRS from the ceremony's accumulated entropy at the
// given constraint system size and persists it as a vault secret, the same
// way the teacher's Prover.persistSRS persists a prover's SRS.
func (c *Ceremony) Provision(size uint64) (*uuid.UUID, error) {
	srs, err := c.GenerateSRS(size, c.curveID())
	if err != nil {
		return nil, fmt.Errorf("failed to generate SRS for ceremony %s; %s", c.ID, err.Error())
	}

	var buf bytes.Buffer
	if _, err := srs.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize SRS for ceremony %s; %s", c.ID, err.Error())
	}

	secret, err := vault.CreateSecret(
		util.DefaultVaultAccessJWT,
		c.VaultID.String(),
		map[string]interface{}{
			"description": fmt.Sprintf("rollup aggregator join-split circuit SRS (ceremony %s)", c.ID),
			"name":        "join-split circuit SRS",
			"type":        "rollup_aggregator_join_split_srs",
			"value":       hex.EncodeToString(buf.Bytes()),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store SRS for ceremony %s in vault %s; %s", c.ID, c.VaultID.String(), err.Error())
	}

	c.SRSID = &secret.ID
	db := dbconf.DatabaseConnection()
	c.updateStatus(db, ceremonyStatusComplete, nil)

	return c.SRSID, nil
}

// FetchSRS resolves a previously-provisioned SRS secret from vault, in the
// hex-encoded form cmd/api decodes on startup.
func FetchSRS(vaultID, secretID string) ([]byte, error) {
	secret, err := vault.FetchSecret(util.DefaultVaultAccessJWT, vaultID, secretID, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SRS secret %s from vault %s; %s", secretID, vaultID, err.Error())
	}

	decoded, err := hex.DecodeString(*secret.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode SRS secret %s; %s", secretID, err.Error())
	}

	return decoded, nil
}
