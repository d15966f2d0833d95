package client

import (
	"bytes"
	"io"
	"os"
)

// Payload is one named body ready for upload.
type Payload struct {
	Name  string
	Size  int64
	Files int

	r     io.Reader
	close func() error
}

func (p *Payload) Read(b []byte) (int, error) { return p.r.Read(b) }

// Close releases the underlying file, if any.
func (p *Payload) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// NewPayload prepares args for upload. A single regular file is sent as is;
// directories and multiple paths are zipped into one archive.
func NewPayload(args []string) (*Payload, error) {
	parsed, err := ParsePaths(args)
	if err != nil {
		return nil, err
	}

	if len(parsed) == 1 && parsed[0].Kind == PathFile {
		f, err := os.Open(parsed[0].FullPath)
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Payload{
			Name:  info.Name(),
			Size:  info.Size(),
			Files: 1,
			r:     f,
			close: f.Close,
		}, nil
	}

	root, err := BuildTree(parsed)
	if err != nil {
		return nil, err
	}
	data, err := ToZipBytes(root)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Name:  root.Name() + ".zip",
		Size:  int64(len(data)),
		Files: CountFiles(root),
		r:     bytes.NewReader(data),
	}, nil
}
