package encoding

import (
	"encoding/json"
	"sort"
	"time"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

func unixNanoToTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// directorySnapshot is the canonical, on-store representation of a
// Directory: its id, its version-chain cap, and every child's metadata in
// name order. It mirrors the teacher's own directory-content-hashing
// convention of hashing a deterministic JSON encoding of the directory's
// base layer, generalized from a fixed record shape to this package's
// MetaData.
type directorySnapshot struct {
	DirectoryId Identity144 `json:"directory_id"`
	MaxVersions int         `json:"max_versions"`
	Children    []childRecord `json:"children"`
}

// Identity144 avoids pulling drive.Identity's String()/IsZero() methods
// into the wire format; json.Marshal on a plain byte array already produces
// a deterministic, order-preserving encoding.
type Identity144 = [64]byte

type childRecord struct {
	Name        string      `json:"name"`
	Size        uint64      `json:"size"`
	ModTimeUnix int64       `json:"mod_time_unix_nano"`
	DirectoryId *Identity144 `json:"directory_id,omitempty"`
	DataMapRef  []byte      `json:"data_map_ref,omitempty"`
}

// EncodeDirectory produces the canonical byte sequence for a directory
// snapshot: two directories with identical (directoryID, maxVersions,
// children-in-order) always encode to byte-identical output, since
// encoding/json preserves struct field order and children are required to
// already be sorted by name by the caller (Directory.Serialise never calls
// this with an unsorted slice).
func EncodeDirectory(directoryID drive.DirectoryId, maxVersions int,
	children []*drive.MetaData) ([]byte, error) {

	snapshot := directorySnapshot{
		DirectoryId: Identity144(directoryID),
		MaxVersions: maxVersions,
		Children:    make([]childRecord, len(children)),
	}
	for i, m := range children {
		rec := childRecord{
			Name:        m.Name,
			Size:        m.Size,
			ModTimeUnix: m.ModTime.UnixNano(),
			DataMapRef:  m.DataMapRef,
		}
		if m.DirectoryId != nil {
			id := Identity144(*m.DirectoryId)
			rec.DirectoryId = &id
		}
		snapshot.Children[i] = rec
	}
	return json.Marshal(snapshot)
}

// DecodeDirectory is EncodeDirectory's inverse. The returned children are
// already sorted by name, matching Directory's own invariant, so callers
// can load them straight into a Directory without re-sorting.
func DecodeDirectory(data []byte) (drive.DirectoryId, int, []*drive.MetaData, error) {
	var snapshot directorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return drive.DirectoryId{}, 0, nil, err
	}

	children := make([]*drive.MetaData, len(snapshot.Children))
	for i, rec := range snapshot.Children {
		m := &drive.MetaData{
			Name:       rec.Name,
			Size:       rec.Size,
			ModTime:    unixNanoToTime(rec.ModTimeUnix),
			DataMapRef: rec.DataMapRef,
		}
		if rec.DirectoryId != nil {
			id := drive.DirectoryId(*rec.DirectoryId)
			m.DirectoryId = &id
		}
		children[i] = m
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	return drive.DirectoryId(snapshot.DirectoryId), snapshot.MaxVersions, children, nil
}
