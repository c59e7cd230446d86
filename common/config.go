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

package common

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

const defaultListenPort = "8080"

// ProofRegistryProviderMemory keeps consumed proof handles in process memory
const ProofRegistryProviderMemory = "memory"

// ProofRegistryProviderSparseMerkleTree keeps consumed proof handles in a sparse merkle tree
const ProofRegistryProviderSparseMerkleTree = "smt"

var (
	// Log is the configured logger
	Log *logger.Logger

	// ConsumeNATSStreamingSubscriptions is true when the oracle consumer should subscribe on init
	ConsumeNATSStreamingSubscriptions bool

	// DispatchNATSNotifications is true when committed pool events should be published to NATS
	DispatchNATSNotifications bool

	// ListenPort is the port the API listens on
	ListenPort string

	// ProofRegistryProvider is the configured proof registry provider
	ProofRegistryProvider string

	// ProofRegistryCurve optionally selects the MiMC curve used to key the proof registry tree
	ProofRegistryCurve *string
)

func init() {
	godotenv.Load()

	requireLogger()
	requireConfig()
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("datapool", lvl, endpoint)
}

func requireConfig() {
	ConsumeNATSStreamingSubscriptions = strings.ToLower(os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS")) == "true"
	DispatchNATSNotifications = os.Getenv("NATS_URL") != "" || os.Getenv("NATS_JETSTREAM_URL") != ""

	ListenPort = os.Getenv("PORT")
	if ListenPort == "" {
		ListenPort = defaultListenPort
	}

	ProofRegistryProvider = strings.ToLower(os.Getenv("PROOF_REGISTRY_PROVIDER"))
	if ProofRegistryProvider == "" {
		ProofRegistryProvider = ProofRegistryProviderMemory
	}

	ProofRegistryCurve = StringOrNil(os.Getenv("PROOF_REGISTRY_CURVE"))
}
