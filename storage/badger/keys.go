package badger

import (
	"encoding/binary"
)

// Key layout. Company-scoped prefixes make tenant isolation a property of the
// key space rather than a filter applied after reads.
//
//	doc:<documentId>                                    document record
//	doccomp:<companyId>\x00<documentId>                 company index entry
//	vec:<companyId>\x00<documentId>\x00<chunkIndex BE>  vector record
//	job:<documentId>                                    ingestion job
//	blob:<storageKey>                                   raw document payload
//
// Caller-supplied segments are joined with a NUL separator so a printable
// character inside a tenant id cannot extend one tenant's prefix into
// another's: the prefix for "acme" ends in NUL and never matches a key of
// "acme:eu". A tenant id that itself contains NUL could still collide, so
// every prefix scan re-checks ownership on the decoded record.

const keySep = "\x00"

func documentKey(documentId string) []byte {
	return []byte("doc:" + documentId)
}

func companyIndexKey(companyId, documentId string) []byte {
	return []byte("doccomp:" + companyId + keySep + documentId)
}

func companyIndexPrefix(companyId string) []byte {
	return []byte("doccomp:" + companyId + keySep)
}

func vectorKey(companyId, documentId string, chunkIndex int) []byte {
	prefix := "vec:" + companyId + keySep + documentId + keySep
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], uint32(chunkIndex))
	return key
}

func vectorDocumentPrefix(companyId, documentId string) []byte {
	return []byte("vec:" + companyId + keySep + documentId + keySep)
}

func vectorCompanyPrefix(companyId string) []byte {
	return []byte("vec:" + companyId + keySep)
}

func jobKey(documentId string) []byte {
	return []byte("job:" + documentId)
}

var jobPrefix = []byte("job:")

func blobKey(storageKey string) []byte {
	return []byte("blob:" + storageKey)
}
