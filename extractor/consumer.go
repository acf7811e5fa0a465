package extractor

// Chunk is one run of a file handed to the consumer. Data is only valid
// for the duration of the call and is nil for empty files. Data is read
// only: zero filled chunks of sparse regions share one buffer.
type Chunk struct {
	Id          uint64
	Path        string
	Offset      uint64
	TotalLength uint64
	Data        []byte
}

// Last reports if this is the final chunk of the file.
func (self *Chunk) Last() bool {
	return self.Offset+uint64(len(self.Data)) == self.TotalLength
}

// State is the per-file slot a consumer may use to carry data between
// calls for the same file. It is allocated before the first chunk and
// passed unchanged until the file is finished.
type State struct {
	Value interface{}
}

// Consumer receives every file's bytes in increasing offset order. An
// error aborts the whole extraction.
type Consumer interface {
	Deliver(chunk *Chunk, state *State) error
}

// Finisher is optionally implemented by consumers that hold resources
// per file. err is non-nil when the file failed before full delivery.
type Finisher interface {
	Finish(file *FileEntry, state *State, err error) error
}

type ConsumerFunc func(chunk *Chunk, state *State) error

func (self ConsumerFunc) Deliver(chunk *Chunk, state *State) error {
	return self(chunk, state)
}
