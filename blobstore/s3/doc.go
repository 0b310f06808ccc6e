// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", "datasets/wiki/",
//	    s3.WithRegion("us-east-1"),
//	)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart streaming uploads through the SDK upload manager
//   - CRC32C integrity checksums on uploads
//   - Automatic pagination for listing
package s3
