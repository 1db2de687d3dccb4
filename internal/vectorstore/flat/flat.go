package flat

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
)

// Index is an append-only brute-force nearest-neighbor index over float32
// vectors using squared L2 distance. The first Add on an empty index fixes
// the dimensionality for the index's entire lifetime, unless a dimension was
// given to New upfront.
//
// Index itself is not safe for concurrent use; the owning store serializes
// access.
type Index struct {
	dim     int
	vectors [][]float32
}

// Hit is one nearest-neighbor match: the squared L2 distance and the
// position of the stored vector.
type Hit struct {
	Distance float64
	Position int
}

// New creates an index. dim may be 0 to adopt the dimensionality of the
// first added vector.
func New(dim int) *Index {
	if dim < 0 {
		dim = 0
	}
	return &Index{dim: dim}
}

// Dimension returns the fixed dimensionality, or 0 if not yet established.
func (ix *Index) Dimension() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Add appends a batch of vectors. The batch is validated as a whole before
// anything is appended, so a dimension mismatch never leaves a partial batch
// in the index.
func (ix *Index) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := ix.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return goerr.Wrap(domain.ErrDimensionMismatch, "empty vector")
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return goerr.Wrap(domain.ErrDimensionMismatch, "vector dimension disagrees with index",
				goerr.V("want", dim), goerr.V("got", len(v)), goerr.V("batch_position", i))
		}
	}
	ix.dim = dim
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Truncate drops stored vectors beyond n. Used to roll back a batch whose
// metadata counterpart failed to commit.
func (ix *Index) Truncate(n int) {
	if n < 0 || n >= len(ix.vectors) {
		return
	}
	ix.vectors = ix.vectors[:n]
}

// Search returns the k nearest stored vectors by ascending squared L2
// distance. Fewer than k results are returned when fewer vectors exist; an
// empty index yields no results and no error. Ties break by position so the
// ordering is deterministic.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(ix.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, goerr.Wrap(domain.ErrDimensionMismatch, "query dimension disagrees with index",
			goerr.V("want", ix.dim), goerr.V("got", len(query)))
	}

	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{Distance: sqDistL2(query, v), Position: i}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func sqDistL2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

const (
	blobMagic   uint32 = 0x59545249 // "YTRI"
	blobVersion uint32 = 1

	// far above any real embedding width; a larger header value is corruption
	maxBlobDim = 1 << 16
)

// Encode serializes the index into its binary blob format: a little-endian
// header (magic, version, dimension, count) followed by the raw float32
// vector data.
func (ix *Index) Encode(w io.Writer) error {
	header := []uint32{blobMagic, blobVersion, uint32(ix.dim), uint32(len(ix.vectors))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return goerr.Wrap(err, "writing index header failed")
	}
	for _, v := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return goerr.Wrap(err, "writing index vectors failed")
		}
	}
	return nil
}

// Decode reads an index blob written by Encode.
func Decode(r io.Reader) (*Index, error) {
	header := make([]uint32, 4)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, goerr.Wrap(domain.ErrIndexUnavailable, "reading index header failed", goerr.V("cause", err))
	}
	if header[0] != blobMagic {
		return nil, goerr.Wrap(domain.ErrIndexUnavailable, "not an index blob", goerr.V("magic", header[0]))
	}
	if header[1] != blobVersion {
		return nil, goerr.Wrap(domain.ErrIndexUnavailable, "unsupported index blob version", goerr.V("version", header[1]))
	}
	dim, count := int(header[2]), int(header[3])
	if dim <= 0 && count > 0 {
		return nil, goerr.Wrap(domain.ErrIndexUnavailable, "corrupt index header",
			goerr.V("dimension", dim), goerr.V("count", count))
	}
	if dim > maxBlobDim {
		return nil, goerr.Wrap(domain.ErrIndexUnavailable, "implausible index dimension",
			goerr.V("dimension", dim))
	}

	ix := New(dim)
	// count is untrusted input; grow as vectors actually decode instead of
	// preallocating from the header, so a corrupt count fails on the first
	// missing vector rather than exhausting memory
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, goerr.Wrap(domain.ErrIndexUnavailable, "reading index vectors failed",
				goerr.V("position", i), goerr.V("cause", err))
		}
		ix.vectors = append(ix.vectors, v)
	}
	return ix, nil
}
