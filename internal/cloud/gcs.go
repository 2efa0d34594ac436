// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file defines models related to Google Cloud Storage (GCS): the
// structure of GCS Pub/Sub notifications and a simplified internal
// representation of a GCS object.
package cloud

import (
	"fmt"
	"strings"
)

// GetGCSObjectName returns the key under which the GCSObject being processed
// is stored in a workflow context.
func GetGCSObjectName() string {
	return "__GCS__OBJ__"
}

// GCSPubSubNotification is the JSON payload of a GCS object notification.
type GCSPubSubNotification struct {
	Kind           string                 `json:"kind"`           // Typically "storage#object".
	ID             string                 `json:"id"`             // The full ID of the object, including bucket and generation.
	SelfLink       string                 `json:"selfLink"`       // The URI for this object.
	Name           string                 `json:"name"`           // The name of the object within the bucket.
	Bucket         string                 `json:"bucket"`         // The name of the bucket containing the object.
	Generation     string                 `json:"generation"`     // The generation number of the object's content.
	MetaGeneration string                 `json:"metageneration"` // The generation number of the object's metadata.
	ContentType    string                 `json:"contentType"`    // The MIME type of the object's content.
	TimeCreated    string                 `json:"timeCreated"`    // The creation time of the object.
	Updated        string                 `json:"updated"`        // The last modification time of the object.
	StorageClass   string                 `json:"storageClass"`   // The storage class of the object.
	Size           string                 `json:"size"`           // The size of the object in bytes.
	MD5Hash        string                 `json:"md5Hash"`        // The MD5 hash of the object's content.
	MediaLink      string                 `json:"mediaLink"`      // A link to download the object's content.
	MetaData       map[string]interface{} `json:"metadata"`       // User-provided metadata, if any.
	Crc32c         string                 `json:"crc32c"`         // The CRC32C checksum of the object's content.
	ETag           string                 `json:"etag"`           // The HTTP ETag of the object.
}

// GCSObject is the lightweight form of a notification passed between commands.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "video/mp4").
}

// URI returns the gs:// form of the object.
func (o GCSObject) URI() string {
	return GCSURI(o.Bucket, o.Name)
}

// GCSURI builds a gs:// URI.
func GCSURI(bucket string, name string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(name, "/"))
}

// ParseGCSURI splits a gs:// URI into bucket and object name.
func ParseGCSURI(uri string) (bucket string, name string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI %q", uri)
	}
	bucket, name, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || name == "" {
		return "", "", fmt.Errorf("invalid GCS URI %q: missing bucket or object", uri)
	}
	return bucket, name, nil
}
