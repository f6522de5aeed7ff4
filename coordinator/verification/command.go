package verification

import (
	"fmt"
)

// validContributionMarker is the exact substring the verification tool prints
// on success. Its presence in the worker output is the only accepted proof of
// a valid contribution.
const validContributionMarker = "ZKey Ok!"

// verificationScript returns the ordered commands a worker runs to verify a
// candidate zkey. The genesis zkey and Powers of Tau artifact are provisioned
// on the worker at circuit setup; the script downloads the candidate,
// verifies it against them while streaming the transcript, uploads the
// transcript and cleans up after itself.
func verificationScript(bucketName, zkeyStoragePath, transcriptStoragePath string) []string {
	return []string{
		"source /etc/profile",
		fmt.Sprintf("aws s3 cp s3://%s/%s /var/tmp/candidate.zkey", bucketName, zkeyStoragePath),
		"snarkjs zkvi /var/tmp/genesis.zkey /var/tmp/pot.ptau /var/tmp/candidate.zkey | tee /var/tmp/verification_transcript.log",
		fmt.Sprintf("aws s3 cp /var/tmp/verification_transcript.log s3://%s/%s", bucketName, transcriptStoragePath),
		"rm /var/tmp/candidate.zkey /var/tmp/verification_transcript.log",
	}
}
