// Package classify talks to the image classification service used for
// tagging and unsafe-content detection.
//
// The service accepts a multipart POST with one or more "file" parts, a
// comma-separated "labels" field, and format=json, and answers with one
// object per file: [{"tags": {"label": confidence}}]. An empty labels field
// asks the service for its own label set, which is how the unsafe score is
// requested.
package classify
