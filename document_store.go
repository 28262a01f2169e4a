package luzidos

import (
	"context"
	"encoding/json"
)

// DocumentStore is path-addressed storage for JSON documents and binary
// files. It offers no transactions and no multi-key atomicity; components
// built on top must tolerate read-modify-write races.
type DocumentStore interface {
	// GetJSON reads the document at path into v. Returns a not_found error
	// when the document is absent.
	GetJSON(ctx context.Context, path string, v any) error

	// PutJSON writes v as the complete document at path.
	PutJSON(ctx context.Context, path string, v any) error

	// GetObject reads the raw bytes stored at path.
	GetObject(ctx context.Context, path string) ([]byte, error)

	// PutObject writes raw bytes at path.
	PutObject(ctx context.Context, path string, data []byte) error

	// Exists reports whether a document is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths stored under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Copy duplicates the object at src to dst.
	Copy(ctx context.Context, src, dst string) error
}

// DocumentCAS is an optional capability of stores that can perform a
// conditional write. The replacement is written only if the current raw
// document bytes equal previous; a nil previous means "create only if
// absent". Stores without this capability leave the execution lock advisory.
type DocumentCAS interface {
	CompareAndSwapJSON(ctx context.Context, path string, v any, previous []byte) (bool, error)
}

func marshalDocument(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return data, nil
}

func unmarshalDocument(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	return nil
}
