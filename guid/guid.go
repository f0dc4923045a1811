// Package guid provides the opaque 128-bit identifiers used to correlate a
// logical resource across sessions.
package guid

import "github.com/google/uuid"

// Guid identifies a logical resource. The zero value is the invalid sentinel,
// meaning "not bound to any identity".
type Guid struct {
	id uuid.UUID
}

// Invalid returns the invalid sentinel.
func Invalid() Guid {
	return Guid{}
}

// New returns a freshly generated random Guid.
func New() Guid {
	return Guid{id: uuid.New()}
}

// Parse reads a Guid from its canonical string form.
func Parse(s string) (Guid, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Guid{}, err
	}
	return Guid{id: id}, nil
}

// FromBytes builds a Guid from a 16-byte slice.
func FromBytes(b []byte) (Guid, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return Guid{}, err
	}
	return Guid{id: id}, nil
}

// IsValid reports whether the Guid is not the invalid sentinel.
func (g Guid) IsValid() bool {
	return g.id != uuid.Nil
}

func (g Guid) String() string {
	return g.id.String()
}
