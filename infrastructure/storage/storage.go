// Package storage provides the object-blob clients used for element
// payloads. Backends only ever see the returned descriptor; relational
// semantics never reach this layer.
package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/gabriel-vasile/mimetype"

	"chatstore/domain/chat"
)

// Descriptor is the retrieval handle returned by a Put: the key the
// bytes live under and a URL the host can hand to a renderer.
type Descriptor struct {
	Key string
	URL string
}

// ObjectStorage uploads bytes under a caller-chosen key.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Descriptor, error)
}

// Deleter is an optional capability: clients that can remove blobs
// implement it. Blob removal on element delete is best effort and never
// mandated by the persistence contract.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// ElementKey derives the object key for an element payload. The caller
// supplied name is reduced to its base so it cannot introduce path
// segments into the key.
func ElementKey(element *chat.Element) string {
	name := path.Base(element.Name)
	if name == "" || name == "." || name == ".." || name == "/" {
		name = element.ID
	}
	return fmt.Sprintf("threads/%s/elements/%s/%s", element.ThreadID, element.ID, name)
}

// UploadElementPayload writes the payload through the client and fills
// the element's object key, URL and (when absent) mime type from the
// result. A nil client is a configuration error surfaced to the caller.
func UploadElementPayload(ctx context.Context, client ObjectStorage, element *chat.Element, payload []byte) error {
	if client == nil {
		return fmt.Errorf("no object storage configured for element payloads")
	}

	contentType := ""
	if element.Mime != nil {
		contentType = *element.Mime
	}
	if contentType == "" {
		detected := mimetype.Detect(payload).String()
		contentType = detected
		element.Mime = &detected
	}

	desc, err := client.Put(ctx, ElementKey(element), payload, contentType)
	if err != nil {
		return err
	}

	element.ObjectKey = &desc.Key
	if desc.URL != "" {
		element.URL = &desc.URL
	}
	return nil
}

// DeleteElementPayload removes the blob behind an element when the
// client supports deletion and the element references an object key.
// Failures are returned for logging only; callers must not fail the
// entity delete on them.
func DeleteElementPayload(ctx context.Context, client ObjectStorage, element *chat.Element) error {
	if client == nil || element.ObjectKey == nil {
		return nil
	}
	deleter, ok := client.(Deleter)
	if !ok {
		return nil
	}
	return deleter.Delete(ctx, *element.ObjectKey)
}
