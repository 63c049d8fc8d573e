package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every record type the storage layer persists. These are
// written by hand rather than generated; the encoding of each struct is the
// MUS encoding of its fields in declaration order. Changing field order is a
// breaking change for existing databases.

var (
	// DocumentMUS serializes Document records.
	DocumentMUS = documentSer{}
	// VectorRecordMUS serializes VectorRecord records.
	VectorRecordMUS = vectorRecordSer{}
	// IngestJobMUS serializes IngestJob records.
	IngestJobMUS = ingestJobSer{}

	floatSliceMUS = ord.NewSliceSer[float32](raw.Float32)
	metadataMUS   = ord.NewMapSer[string, string](ord.String, ord.String)
)

// Timestamps are stored as Unix microseconds. The zero time is stored as 0 so
// it round-trips to a zero time.Time.

func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

type documentSer struct{}

func (documentSer) Marshal(d Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.CompanyId, bs[n:])
	n += ord.String.Marshal(d.AgentId, bs[n:])
	n += ord.String.Marshal(d.Name, bs[n:])
	n += ord.String.Marshal(d.FileName, bs[n:])
	n += ord.String.Marshal(d.StorageKey, bs[n:])
	n += varint.Int64.Marshal(d.SizeBytes, bs[n:])
	n += ord.String.Marshal(d.MimeType, bs[n:])
	n += ord.String.Marshal(string(d.Status), bs[n:])
	n += varint.Int.Marshal(d.ChunkCount, bs[n:])
	n += varint.Int.Marshal(d.VectorCount, bs[n:])
	n += metadataMUS.Marshal(d.Metadata, bs[n:])
	n += ord.String.Marshal(d.LastError, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	n += marshalTime(d.ProcessedAt, bs[n:])
	return n
}

func (documentSer) Unmarshal(bs []byte) (d Document, n int, err error) {
	var (
		n1     int
		status string
	)
	if d.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.CompanyId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.AgentId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.FileName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.StorageKey, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.SizeBytes, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.MimeType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if status, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	d.Status = DocumentStatus(status)
	n += n1
	if d.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.VectorCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.LastError, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.ProcessedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (documentSer) Size(d Document) (size int) {
	size = ord.String.Size(d.Id)
	size += ord.String.Size(d.CompanyId)
	size += ord.String.Size(d.AgentId)
	size += ord.String.Size(d.Name)
	size += ord.String.Size(d.FileName)
	size += ord.String.Size(d.StorageKey)
	size += varint.Int64.Size(d.SizeBytes)
	size += ord.String.Size(d.MimeType)
	size += ord.String.Size(string(d.Status))
	size += varint.Int.Size(d.ChunkCount)
	size += varint.Int.Size(d.VectorCount)
	size += metadataMUS.Size(d.Metadata)
	size += ord.String.Size(d.LastError)
	size += sizeTime(d.CreatedAt)
	size += sizeTime(d.UpdatedAt)
	size += sizeTime(d.ProcessedAt)
	return size
}

type vectorRecordSer struct{}

func (vectorRecordSer) Marshal(v VectorRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.DocumentId, bs)
	n += ord.String.Marshal(v.CompanyId, bs[n:])
	n += ord.String.Marshal(v.AgentId, bs[n:])
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	n += floatSliceMUS.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.FileName, bs[n:])
	n += varint.Int.Marshal(v.Start, bs[n:])
	n += varint.Int.Marshal(v.End, bs[n:])
	return n
}

func (vectorRecordSer) Unmarshal(bs []byte) (v VectorRecord, n int, err error) {
	var n1 int
	if v.DocumentId, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.CompanyId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.AgentId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Vector, n1, err = floatSliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.FileName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Start, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.End, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (vectorRecordSer) Size(v VectorRecord) (size int) {
	size = ord.String.Size(v.DocumentId)
	size += ord.String.Size(v.CompanyId)
	size += ord.String.Size(v.AgentId)
	size += varint.Int.Size(v.ChunkIndex)
	size += floatSliceMUS.Size(v.Vector)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.FileName)
	size += varint.Int.Size(v.Start)
	size += varint.Int.Size(v.End)
	return size
}

type ingestJobSer struct{}

func (ingestJobSer) Marshal(j IngestJob, bs []byte) (n int) {
	n = ord.String.Marshal(j.DocumentId, bs)
	n += ord.String.Marshal(j.CompanyId, bs[n:])
	n += varint.Int.Marshal(j.Attempts, bs[n:])
	n += varint.Int.Marshal(int(j.State), bs[n:])
	n += ord.String.Marshal(j.LeaseToken, bs[n:])
	n += marshalTime(j.LeaseExpiry, bs[n:])
	n += marshalTime(j.EnqueuedAt, bs[n:])
	return n
}

func (ingestJobSer) Unmarshal(bs []byte) (j IngestJob, n int, err error) {
	var (
		n1    int
		state int
	)
	if j.DocumentId, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if j.CompanyId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if j.Attempts, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if state, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	j.State = JobState(state)
	n += n1
	if j.LeaseToken, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if j.LeaseExpiry, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if j.EnqueuedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (ingestJobSer) Size(j IngestJob) (size int) {
	size = ord.String.Size(j.DocumentId)
	size += ord.String.Size(j.CompanyId)
	size += varint.Int.Size(j.Attempts)
	size += varint.Int.Size(int(j.State))
	size += ord.String.Size(j.LeaseToken)
	size += sizeTime(j.LeaseExpiry)
	size += sizeTime(j.EnqueuedAt)
	return size
}
