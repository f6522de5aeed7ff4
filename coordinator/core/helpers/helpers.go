// Package helpers contains pure functions shared by the queue, verification
// and finalization services: artifact naming, blob store paths and the
// rolling timing average rule.
package helpers

import (
	"fmt"
	"strings"
	"unicode"
)

// GenesisZkeyIndex is the index of the zkey every circuit starts from. Its
// width fixes the zero padding of every subsequent index.
const GenesisZkeyIndex = "00000"

// FinalZkeyIndex is the literal index recorded for a circuit's final
// contribution.
const FinalZkeyIndex = "final"

// FormatZkeyIndex renders a contribution progress counter as a zkey index,
// zero padded to the width of the genesis index. Indexes wider than the
// genesis index are kept as is.
func FormatZkeyIndex(progress int) string {
	index := fmt.Sprintf("%d", progress)
	for len(index) < len(GenesisZkeyIndex) {
		index = "0" + index
	}
	return index
}

// ExtractPrefix derives a storage-safe prefix from a ceremony or circuit
// name: every run of symbols or whitespace becomes a single dash and the
// result is lowercased.
func ExtractPrefix(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune('-')
		}
	}
	return b.String()
}

// ZkeyFilename returns the artifact name of the zkey with the given index.
func ZkeyFilename(circuitPrefix, zkeyIndex string) string {
	return fmt.Sprintf("%s_%s.zkey", circuitPrefix, zkeyIndex)
}

// TranscriptFilename returns the verification transcript name for a
// contribution. The identifier is the contributor's id, or the coordinator's
// for the final contribution.
func TranscriptFilename(circuitPrefix, zkeyIndex, identifier string) string {
	if zkeyIndex == FinalZkeyIndex {
		return fmt.Sprintf("%s_%s_final_verification_transcript.log", circuitPrefix, identifier)
	}
	return fmt.Sprintf("%s_%s_%s_verification_transcript.log", circuitPrefix, zkeyIndex, identifier)
}

// VerificationKeyFilename returns the exported verification key name of a
// finalized circuit.
func VerificationKeyFilename(circuitPrefix string) string {
	return circuitPrefix + "_vkey.json"
}

// VerifierContractFilename returns the exported verifier contract name of a
// finalized circuit.
func VerifierContractFilename(circuitPrefix string) string {
	return circuitPrefix + "_verifier.sol"
}

// ContributionStoragePath returns the blob store path of a contribution
// artifact.
func ContributionStoragePath(circuitPrefix, filename string) string {
	return fmt.Sprintf("circuits/%s/contributions/%s", circuitPrefix, filename)
}

// TranscriptStoragePath returns the blob store path of a verification
// transcript.
func TranscriptStoragePath(circuitPrefix, filename string) string {
	return fmt.Sprintf("circuits/%s/transcripts/%s", circuitPrefix, filename)
}

// VerificationKeyStoragePath returns the blob store path of a finalized
// circuit's verification key.
func VerificationKeyStoragePath(circuitPrefix string) string {
	return fmt.Sprintf("circuits/%s/%s", circuitPrefix, VerificationKeyFilename(circuitPrefix))
}

// VerifierContractStoragePath returns the blob store path of a finalized
// circuit's verifier contract.
func VerifierContractStoragePath(circuitPrefix string) string {
	return fmt.Sprintf("circuits/%s/%s", circuitPrefix, VerifierContractFilename(circuitPrefix))
}

// PotStoragePath returns the blob store path of a powers of tau file.
func PotStoragePath(potFilename string) string {
	return "pot/" + potFilename
}

// UpdateAverage folds a new sample into a rolling average: the first sample
// becomes the average, afterwards the average halves its distance to each
// new sample.
func UpdateAverage(prev, sample int64) int64 {
	if prev > 0 {
		return (prev + sample) / 2
	}
	return sample
}
