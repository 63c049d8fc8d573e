// Copyright 2025 Voxhive Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"github.com/voxhive/knowledged/core"
)

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalVectorRecord serializes a VectorRecord to bytes.
func MarshalVectorRecord(rec *core.VectorRecord) []byte {
	buf := make([]byte, core.VectorRecordMUS.Size(*rec))
	core.VectorRecordMUS.Marshal(*rec, buf)
	return buf
}

// UnmarshalVectorRecord deserializes a VectorRecord from bytes.
func UnmarshalVectorRecord(data []byte) (*core.VectorRecord, error) {
	rec, _, err := core.VectorRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarshalIngestJob serializes an IngestJob to bytes.
func MarshalIngestJob(job *core.IngestJob) []byte {
	buf := make([]byte, core.IngestJobMUS.Size(*job))
	core.IngestJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalIngestJob deserializes an IngestJob from bytes.
func UnmarshalIngestJob(data []byte) (*core.IngestJob, error) {
	job, _, err := core.IngestJobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
