package kv

// The schema mirrors the hierarchical collection paths
// ceremonies/{ceremonyId}/{circuits|participants}/{id}[/contributions/{id}]:
// the ceremonies bucket maps ceremony ids to documents, while the circuits,
// participants and contributions buckets hold one nested bucket per ceremony
// id (and per circuit id for contributions) mapping child ids to documents.
var (
	ceremoniesBucket    = []byte("ceremonies")
	circuitsBucket      = []byte("circuits")
	participantsBucket  = []byte("participants")
	contributionsBucket = []byte("contributions")
)
