// Package encoding holds the on-store byte formats for this package: a
// file's data-map reference and a directory's full snapshot.
package encoding

import "encoding/json"

// ChunkMapRef is the stand-in for a file's self-encryption data map: the
// root hash of its chunk tree, the number of chunks it resolves to, and the
// file's total plaintext size. The real chunk-level encoding engine is
// outside this package's scope; this is the boundary type a producer of
// that engine would populate.
type ChunkMapRef struct {
	RootHash  [64]byte `json:"root_hash"`
	ChunkCount uint32  `json:"chunk_count"`
	TotalSize  uint64  `json:"total_size"`
}

// EncodeChunkMapRef serializes ref for embedding as a MetaData.DataMapRef.
func EncodeChunkMapRef(ref ChunkMapRef) ([]byte, error) {
	return json.Marshal(ref)
}

// DecodeChunkMapRef parses bytes previously produced by EncodeChunkMapRef.
func DecodeChunkMapRef(data []byte) (ChunkMapRef, error) {
	var ref ChunkMapRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return ChunkMapRef{}, err
	}
	return ref, nil
}
