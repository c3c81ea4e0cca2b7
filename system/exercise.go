package system

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/busim/bus"
)

// ErrMismatch is wrapped when a word read back differs from the word written.
var ErrMismatch = errors.New("read back a different value")

// Access records one completed access made by Exercise.
type Access struct {
	Device  string
	Kind    string
	Address int64
	Data    int64
	Ticks   int
}

// Pattern returns the word Exercise stores at addr.
func Pattern(addr int64) int64 {
	return int64(uint32(addr)*2654435761) ^ 0x5a5a5a5a
}

// Exercise writes words words at the start of every window, then reads them
// back and compares. Windows smaller than words words are filled as far as
// they go. The accesses are reported in the order they completed.
func (s *System) Exercise(words int) ([]Access, error) {
	var accesses []Access

	for i, w := range s.windows {
		name := s.memories[i].Name()

		n := min(int64(words), (w.End()-w.Start())/4)
		for k := int64(0); k < n; k++ {
			addr := w.Start() + 4*k
			data := Pattern(addr) & bus.WidthWord.Mask()

			ticks, err := s.Write(bus.Word(addr), bus.Word(data))
			if err != nil {
				return accesses, errors.Wrapf(err, "writing %#x on %s", addr, name)
			}

			accesses = append(accesses, Access{
				Device: name, Kind: "write", Address: addr, Data: data, Ticks: ticks,
			})
		}

		for k := int64(0); k < n; k++ {
			addr := w.Start() + 4*k
			want := Pattern(addr) & bus.WidthWord.Mask()

			v, ticks, err := s.Read(bus.Word(addr), bus.WidthWord)
			if err != nil {
				return accesses, errors.Wrapf(err, "reading %#x on %s", addr, name)
			}

			accesses = append(accesses, Access{
				Device: name, Kind: "read", Address: addr, Data: v.Int(), Ticks: ticks,
			})

			if v.Int() != want {
				return accesses, errors.Wrapf(ErrMismatch,
					"%#x on %s: wrote %#x, read %#x", addr, name, want, v.Int())
			}
		}
	}

	return accesses, nil
}
