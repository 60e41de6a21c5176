package shapestore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/jobrunner/meridian/internal/domain"
)

// tagShapeRange marks an encoded shape blob.
const tagShapeRange = 88001

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = (cbor.EncOptions{Sort: cbor.SortCanonical}).EncMode(); err != nil {
		panic(err)
	}
	// Attribute integers are int64 in the domain; plain CBOR would give
	// uint64 for positive values.
	if decMode, err = (cbor.DecOptions{IntDec: cbor.IntDecConvertSigned}).DecMode(); err != nil {
		panic(err)
	}
}

// storedShape is the compact form of a shape range. Each shape owns its
// vertices, so the decoded range starts at vertex zero.
type storedShape struct {
	Type   int       `cbor:"1,keyasint"`
	Counts []int     `cbor:"2,keyasint"`
	XY     []float64 `cbor:"3,keyasint"`
	M      []float64 `cbor:"4,keyasint,omitempty"`
	Z      []float64 `cbor:"5,keyasint,omitempty"`
}

// plainShape has the fields of storedShape without its codec methods.
type plainShape storedShape

func newStoredShape(rng *domain.ShapeRange) *storedShape {
	s := &storedShape{Type: int(rng.ShapeType())}
	for _, part := range rng.Parts {
		s.Counts = append(s.Counts, part.NumVertices)
		s.XY = append(s.XY, part.Coordinates()...)
		for i := part.StartIndex; i <= part.EndIndex(); i++ {
			if len(rng.M) > 0 {
				s.M = append(s.M, valueAt(rng.M, i))
			}
			if len(rng.Z) > 0 {
				s.Z = append(s.Z, valueAt(rng.Z, i))
			}
		}
	}
	return s
}

// MarshalCBOR encodes the shape as a tagged item.
func (s *storedShape) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(cbor.Tag{
		Number:  tagShapeRange,
		Content: (*plainShape)(s),
	})
}

// UnmarshalCBOR decodes a tagged shape item.
func (s *storedShape) UnmarshalCBOR(data []byte) error {
	var raw cbor.RawTag
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Number != tagShapeRange {
		return fmt.Errorf("unexpected cbor tag %d", raw.Number)
	}
	return decMode.Unmarshal(raw.Content, (*plainShape)(s))
}

// Range rebuilds the shape range over the stored vertices. The extent is
// computed before the range is returned, so readers never write to it.
func (s *storedShape) Range() (*domain.ShapeRange, error) {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	if 2*total != len(s.XY) {
		return nil, fmt.Errorf("shape blob holds %d coordinates for %d vertices", len(s.XY), total)
	}

	rng := domain.NewShapeRangeOfType(domain.ShapeType(s.Type))
	offset := 0
	for _, n := range s.Counts {
		rng.AddPart(s.XY, offset, n)
		offset += n
	}
	rng.M, rng.Z = s.M, s.Z
	rng.Extent()
	return rng, nil
}

func encodeShape(rng *domain.ShapeRange) ([]byte, error) {
	return encMode.Marshal(newStoredShape(rng))
}

func decodeShape(data []byte) (*domain.ShapeRange, error) {
	var s storedShape
	if err := decMode.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Range()
}

func encodeProperties(props map[string]interface{}) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return encMode.Marshal(props)
}

func decodeProperties(data []byte) (map[string]interface{}, error) {
	props := make(map[string]interface{})
	if len(data) == 0 {
		return props, nil
	}
	if err := decMode.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
