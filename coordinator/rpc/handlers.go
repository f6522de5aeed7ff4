package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/finalization"
	"github.com/cryptocole01/p0tion/coordinator/verification"
	"github.com/cryptocole01/p0tion/network/httputil"
)

// VerifyContributionRequest is the JSON body of the verify endpoint.
type VerifyContributionRequest struct {
	CeremonyID                         string `json:"ceremonyId"`
	CircuitID                          string `json:"circuitId"`
	ContributorOrCoordinatorIdentifier string `json:"contributorOrCoordinatorIdentifier"`
	BucketName                         string `json:"bucketName"`
}

// FinalizeCircuitRequest is the JSON body of the finalize endpoint.
type FinalizeCircuitRequest struct {
	CeremonyID string `json:"ceremonyId"`
	CircuitID  string `json:"circuitId"`
	BucketName string `json:"bucketName"`
	Beacon     string `json:"beacon"`
}

// VerifyContribution runs contribution verification for the authenticated
// caller. A worker failure still answers 200: the contribution is recorded as
// invalid rather than failing the request.
func (s *Service) VerifyContribution(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims.Role != RoleParticipant && claims.Role != RoleCoordinator {
		httputil.HandleError(w, "forbidden: role cannot verify contributions", http.StatusForbidden)
		return
	}
	var body VerifyContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.HandleError(w, "Could not decode request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.CeremonyID == "" || body.CircuitID == "" || body.ContributorOrCoordinatorIdentifier == "" || body.BucketName == "" {
		httputil.HandleError(w, "ceremonyId, circuitId, contributorOrCoordinatorIdentifier and bucketName are required", http.StatusBadRequest)
		return
	}
	if body.ContributorOrCoordinatorIdentifier != claims.Subject {
		httputil.HandleError(w, "forbidden: identifier does not match the authenticated subject", http.StatusForbidden)
		return
	}
	err := s.cfg.Verifier.VerifyContribution(r.Context(), &verification.Request{
		CeremonyID:    body.CeremonyID,
		CircuitID:     body.CircuitID,
		UserID:        claims.Subject,
		BucketName:    body.BucketName,
		IsCoordinator: claims.Role == RoleCoordinator,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// FinalizeCircuit seals a circuit's final contribution with the provided
// beacon. Coordinator only.
func (s *Service) FinalizeCircuit(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims.Role != RoleCoordinator {
		httputil.HandleError(w, "forbidden: only the coordinator can finalize circuits", http.StatusForbidden)
		return
	}
	var body FinalizeCircuitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.HandleError(w, "Could not decode request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.CeremonyID == "" || body.CircuitID == "" || body.BucketName == "" || body.Beacon == "" {
		httputil.HandleError(w, "ceremonyId, circuitId, bucketName and beacon are required", http.StatusBadRequest)
		return
	}
	err := s.cfg.Finalizer.FinalizeCircuit(r.Context(), &finalization.Request{
		CeremonyID: body.CeremonyID,
		CircuitID:  body.CircuitID,
		UserID:     claims.Subject,
		BucketName: body.BucketName,
		Beacon:     body.Beacon,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeServiceError maps service failures onto the HTTP error taxonomy:
// missing documents answer 404, precondition failures 412, everything else
// 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var verificationPrecondition *verification.PreconditionError
	var finalizationPrecondition *finalization.PreconditionError
	switch {
	case errors.Is(err, db.ErrNotFound):
		httputil.HandleError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &verificationPrecondition), errors.As(err, &finalizationPrecondition):
		httputil.HandleError(w, err.Error(), http.StatusPreconditionFailed)
	default:
		httputil.HandleError(w, err.Error(), http.StatusInternalServerError)
	}
}
