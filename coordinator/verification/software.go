package verification

import (
	"os"

	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
)

// Environment variables identifying the verification tool recorded on every
// contribution document.
const (
	SoftwareNameEnv       = "CUSTOM_CONTRIBUTION_VERIFICATION_SOFTWARE_NAME"
	SoftwareVersionEnv    = "CUSTOM_CONTRIBUTION_VERIFICATION_SOFTWARE_VERSION"
	SoftwareCommitHashEnv = "CUSTOM_CONTRIBUTION_VERIFICATION_SOFTWARE_COMMIT_HASH"
)

// SoftwareFromEnv loads the verification software identity from the
// environment. Every variable is required.
func SoftwareFromEnv() (*types.VerificationSoftware, error) {
	sw := &types.VerificationSoftware{
		Name:       os.Getenv(SoftwareNameEnv),
		Version:    os.Getenv(SoftwareVersionEnv),
		CommitHash: os.Getenv(SoftwareCommitHashEnv),
	}
	for env, v := range map[string]string{
		SoftwareNameEnv:       sw.Name,
		SoftwareVersionEnv:    sw.Version,
		SoftwareCommitHashEnv: sw.CommitHash,
	} {
		if v == "" {
			return nil, errors.Errorf("missing required environment variable %s", env)
		}
	}
	return sw, nil
}
