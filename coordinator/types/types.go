// Package types defines the ceremony document model shared by every
// coordinator service. Field names are part of the wire contract with
// contributor clients and must not change.
package types

// CeremonyState represents the lifecycle state of a ceremony.
type CeremonyState string

// Ceremony lifecycle states.
const (
	CeremonyScheduled CeremonyState = "SCHEDULED"
	CeremonyOpened    CeremonyState = "OPENED"
	CeremonyPaused    CeremonyState = "PAUSED"
	CeremonyClosed    CeremonyState = "CLOSED"
	CeremonyFinalized CeremonyState = "FINALIZED"
)

// ParticipantStatus represents the contribution lifecycle state of a
// participant within a single ceremony.
type ParticipantStatus string

// Participant statuses.
const (
	StatusWaiting      ParticipantStatus = "WAITING"
	StatusReady        ParticipantStatus = "READY"
	StatusContributing ParticipantStatus = "CONTRIBUTING"
	StatusContributed  ParticipantStatus = "CONTRIBUTED"
	StatusDone         ParticipantStatus = "DONE"
	StatusFinalizing   ParticipantStatus = "FINALIZING"
	StatusTimedOut     ParticipantStatus = "TIMEDOUT"
)

// ContributionStep represents the step a contributing participant is
// currently performing for its circuit.
type ContributionStep string

// Contribution steps.
const (
	StepDownloading ContributionStep = "DOWNLOADING"
	StepComputing   ContributionStep = "COMPUTING"
	StepUploading   ContributionStep = "UPLOADING"
	StepVerifying   ContributionStep = "VERIFYING"
	StepCompleted   ContributionStep = "COMPLETED"
)

// Ceremony is the root document of a trusted-setup ceremony.
type Ceremony struct {
	ID          string        `json:"-"`
	State       CeremonyState `json:"state"`
	Prefix      string        `json:"prefix"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	StartDate   int64         `json:"startDate,omitempty"`
	EndDate     int64         `json:"endDate,omitempty"`
	LastUpdated int64         `json:"lastUpdated"`
}

// WaitingQueue is the per-circuit contributor queue embedded in a circuit
// document. The head of Contributors is the current contributor whenever
// CurrentContributor is non-empty.
type WaitingQueue struct {
	Contributors           []string `json:"contributors"`
	CurrentContributor     string   `json:"currentContributor"`
	CompletedContributions int      `json:"completedContributions"`
	FailedContributions    int      `json:"failedContributions"`
}

// AvgTimings holds the rolling verification timing averages of a circuit,
// in milliseconds.
type AvgTimings struct {
	ContributionComputation int64 `json:"contributionComputation"`
	FullContribution        int64 `json:"fullContribution"`
	VerifyCloudFunction     int64 `json:"verifyCloudFunction"`
}

// CircuitFiles describes the setup artifacts of a circuit in the blob store.
type CircuitFiles struct {
	PotFilename            string `json:"potFilename,omitempty"`
	InitialZkeyFilename    string `json:"initialZkeyFilename,omitempty"`
	PotStoragePath         string `json:"potStoragePath,omitempty"`
	InitialZkeyStoragePath string `json:"initialZkeyStoragePath,omitempty"`
}

// Circuit is a single cryptographic circuit whose keys are being built by
// the ceremony.
type Circuit struct {
	ID               string       `json:"-"`
	Prefix           string       `json:"prefix"`
	SequencePosition int          `json:"sequencePosition"`
	WaitingQueue     WaitingQueue `json:"waitingQueue"`
	AvgTimings       AvgTimings   `json:"avgTimings"`
	Files            CircuitFiles `json:"files"`
	// InstanceID identifies the isolated worker bound to this circuit.
	// It is persisted so that an aborted verification can still be reaped.
	InstanceID  string `json:"instanceId,omitempty"`
	LastUpdated int64  `json:"lastUpdated"`
}

// ParticipantContribution is the partial record a participant keeps for each
// circuit it contributed to. Doc stays empty until the refresher attaches the
// created contribution document id.
type ParticipantContribution struct {
	Hash            string `json:"hash,omitempty"`
	ComputationTime int64  `json:"computationTime,omitempty"`
	Doc             string `json:"doc,omitempty"`
}

// TempContributionData tracks an in-flight artifact upload and is cleared by
// the refresher once the contribution is verified.
type TempContributionData struct {
	ContributionComputationTime int64  `json:"contributionComputationTime,omitempty"`
	UploadID                    string `json:"uploadId,omitempty"`
}

// Timeout is the window a timed out participant stays barred from resuming,
// recorded on the participant for audit.
type Timeout struct {
	StartDate int64 `json:"startDate"`
	EndDate   int64 `json:"endDate"`
}

// Participant is the per-ceremony document of a contributor. The document id
// is the contributor's user id.
type Participant struct {
	UserID                string                    `json:"-"`
	Status                ParticipantStatus         `json:"status"`
	ContributionStep      ContributionStep          `json:"contributionStep,omitempty"`
	ContributionProgress  int                       `json:"contributionProgress"`
	Contributions         []ParticipantContribution `json:"contributions"`
	ContributionStartedAt int64                     `json:"contributionStartedAt"`
	VerificationStartedAt int64                     `json:"verificationStartedAt,omitempty"`
	TempContributionData  *TempContributionData     `json:"tempContributionData,omitempty"`
	Timeouts              []Timeout                 `json:"timeouts,omitempty"`
	LastUpdated           int64                     `json:"lastUpdated"`
}

// ContributionFiles names every artifact a contribution produced together
// with its blob store location and hash. The verification key and verifier
// contract fields are only attached by the finalizer on a circuit's final
// contribution.
type ContributionFiles struct {
	TranscriptFilename    string `json:"transcriptFilename"`
	LastZkeyFilename      string `json:"lastZkeyFilename"`
	TranscriptStoragePath string `json:"transcriptStoragePath"`
	LastZkeyStoragePath   string `json:"lastZkeyStoragePath"`
	TranscriptBlake2bHash string `json:"transcriptBlake2bHash"`
	LastZkeyBlake2bHash   string `json:"lastZkeyBlake2bHash"`

	VerificationKeyFilename     string `json:"verificationKeyFilename,omitempty"`
	VerificationKeyStoragePath  string `json:"verificationKeyStoragePath,omitempty"`
	VerificationKeyBlake2bHash  string `json:"verificationKeyBlake2bHash,omitempty"`
	VerifierContractFilename    string `json:"verifierContractFilename,omitempty"`
	VerifierContractStoragePath string `json:"verifierContractStoragePath,omitempty"`
	VerifierContractBlake2bHash string `json:"verifierContractBlake2bHash,omitempty"`
}

// VerificationSoftware identifies the tool that verified a contribution.
type VerificationSoftware struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	CommitHash string `json:"commitHash"`
}

// Beacon is the public random value binding the final contribution of a
// circuit, recorded with its sha256 hash.
type Beacon struct {
	Value string `json:"value"`
	Hash  string `json:"hash"`
}

// Contribution is the document recorded for every verification attempt of a
// circuit. It is never mutated after the refresher attaches its id to the
// participant, except by the finalizer on the final contribution.
type Contribution struct {
	ID                          string                `json:"-"`
	ParticipantID               string                `json:"participantId"`
	ContributionComputationTime int64                 `json:"contributionComputationTime,omitempty"`
	VerificationComputationTime int64                 `json:"verificationComputationTime"`
	ZkeyIndex                   string                `json:"zkeyIndex"`
	Files                       *ContributionFiles    `json:"files,omitempty"`
	VerificationSoftware        *VerificationSoftware `json:"verificationSoftware,omitempty"`
	Beacon                      *Beacon               `json:"beacon,omitempty"`
	Valid                       bool                  `json:"valid"`
	LastUpdated                 int64                 `json:"lastUpdated"`
}
